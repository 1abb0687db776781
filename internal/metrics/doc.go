// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的团队编排指标采集能力。

# 概述

Collector 统一注册和记录 Prometheus 指标，通过 promauto.With 注册到
默认或指定的 Registry。所有指标按 namespace 隔离，CLI 通过 promhttp
暴露 /metrics。

# 主要能力

  - 运行指标：运行总数（按状态）、运行耗时、进行中的运行数。
  - 决策指标：决策周期结果、模型调用重试、强制终止原因。
  - 模型指标：决策模型调用延迟、LLM 请求与 Token 用量。
  - Agent 指标：调用次数与耗时，按 agent 分组。
  - 存储指标：Trace 存储操作次数与耗时，按 backend/operation 分组。

所有 Record 方法对 nil *Collector 安全。
*/
package metrics

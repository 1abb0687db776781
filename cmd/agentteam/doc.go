// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 agentteam 命令行程序入口。

# 概述

cmd/agentteam 加载运行器配置（config 包）与声明式团队定义（declarative
包），组装 LLM Provider、Trace 存储、Prometheus 指标与 OpenTelemetry，
然后在团队上执行任务或恢复会话。

# 子命令

  - run      — 在任务上运行团队，或通过 --resume 恢复会话；--trace 输出 Trace JSON
  - validate — 只校验团队定义，一次报告全部问题
  - version  — 显示构建注入的版本信息

# 审批

团队定义中 approver 为 "prompt" 的审批拦截器会在终端逐条询问，
输入 y/yes 批准，其余输入或 EOF 视为拒绝。
*/
package main

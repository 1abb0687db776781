// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package types 提供 agentteam 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、agent、llm
等上层模块提供统一的错误码与 Context 传播工具，避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 Retryable 与出错节点标记
  - WithTraceID / WithSessionID / WithTeamDepth — Context 传播

# 错误分类

  - 构建期：GRAPH_INVALID、AGENT_NOT_FOUND、CONFIG_INVALID 等，不重试
  - 运行期：MODEL_CALL_FAILED、INTERCEPTOR_FAILED、AGENT_FAILED、CANCELLED 等
*/
package types

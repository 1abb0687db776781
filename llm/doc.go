// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供团队编排使用的大语言模型接入层。

# 概述

决策任务（mediator）与 LLM 型 Agent 都只依赖 [Provider] 接口：
同步的 Completion 调用加上结构化的 [Error]。具体服务商实现位于
llm/providers 子包，重试策略位于 llm/retry，token 计数位于 llm/tokenizer。

# 错误语义

[Error] 携带 [ErrorCode] 与 Retryable 标记。[IsInvalidRequest] 识别
参数形状错误，此类错误不会被重试，而是作为观察结果写入 Trace；
[IsRetryable] 决定重试器是否继续尝试。

# 限流

[RateLimitedProvider] 基于 golang.org/x/time/rate 对任意 Provider
做客户端限流，等待失败时返回可重试的 ErrRateLimited。
[MeteredProvider] 把每次调用的状态与 token 用量写入 Prometheus 指标。
*/
package llm

// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 team 提供多 Agent 团队的执行引擎。

# 概述

Engine 把编译好的 workflow.Graph、agent.Registry 与 collaboration.Protocol
组合为一个可运行的团队。Build 校验每个 Activity 绑定的 Agent 均已注册，
之后三者不可变，可被任意数量的并发运行共享。

# 运行

Run 在调用方 goroutine 上同步遍历图：每到一个 Activity 先检查取消
（ctx 或 Trace.Cancel），再写检查点并派发绑定的 Agent；非 Activity 节点
通过 Graph.ResolveNextNode 解析下一跳。到达 End 节点或出现致命错误时
结束，结束时 Trace 总是处于已终止状态并被写入存储。

Activity 派发次数受 MaxSteps 限制（默认 MaxIterations × Activity 数 + 1），
没有决策节点的环形图也能终止。

# 会话

  - GetTrace：优先返回运行中的 Trace，其次从 persistence.TraceStore 恢复
  - Resume：从最后一次检查点所在节点继续未完成的会话
  - Cancel：为运行中的会话设置协作式取消标记

# 嵌套

Engine 自身实现 agent.Agent，可注册到另一个团队中。每次嵌套调用创建
子 Trace，通过 ParentID 关联调用方的 Trace，嵌套深度由 ctx 传递并受
MaxDepth 限制。
*/
package team

// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package agent 定义团队成员的统一接口。

# 概述

团队中的每个工作单元都实现 [Agent]：叶子 Worker、决策任务、招标节点，
以及整个嵌套团队。引擎只通过 Name、Description、Invoke 与 Estimate
四个方法与成员交互，不关心其内部实现。

	┌──────────────────────────────────────────────┐
	│                 team.Engine                  │
	├──────────────────────────────────────────────┤
	│   Registry（按名称查找，保持注册顺序）        │
	├───────────────┬───────────────┬──────────────┤
	│   LLMAgent    │   FuncAgent   │ Coordinator  │
	│ （单次模型调用）│  （函数适配）  │（决策 / 招标）│
	└───────────────┴───────────────┴──────────────┘

# 核心类型

  - Agent       — 成员接口，Invoke 读取调用方 Trace 的最近步骤
  - Proposal    — ContractNet 投标，String 渲染为提示词中的一行
  - Coordinator — 参与编排的成员，不出现在路由候选中
  - Registry    — 名称唯一的成员注册表，Without 派生子集
  - FuncAgent   — 把普通函数适配为 Agent，测试与胶水代码常用
  - LLMAgent    — 由 system prompt、任务与最近 Trace 步骤拼成一次补全请求

# 投标

未配置 Bid 的 LLMAgent 直接以描述投标；配置后询问模型，
解析回复中的 cost 与 confidence。不支持投标的 Agent 返回
ErrEstimateUnsupported，招标节点会跳过它。
*/
package agent

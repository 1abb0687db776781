// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
# 概述

包 declarative 提供基于 YAML/JSON 的声明式团队定义与构建能力。

用户可通过配置文件（而非 Go 代码）描述一个团队：成员、工作流图、
协作协议与决策任务参数，由本包加载、校验并构建为可运行的 team.Engine。

# 核心类型

  - TeamLoader / YAMLLoader — 从文件或字节流加载 TeamDefinition，
    按扩展名自动识别格式，解析前展开 ${VAR} 环境变量
  - TeamFactory — 校验定义并组装 Agent、Graph 与 Protocol
  - TeamDefinition — 团队规格，包含 MediatorDefinition、AgentDefinition、
    GraphDefinition
  - EdgeDefinition.When — 排他网关上的 guard 表达式，由 workflow/guard 编译

# 成员类型

  - llm — 由单次模型调用驱动的叶子 Worker（默认）
  - bidding — ContractNet 的招标 Activity，投标者默认为所有 llm/team 成员
  - team — 内联的嵌套团队，以成员名作为团队名

# 典型用法

	def, err := declarative.NewYAMLLoader().LoadFile("team.yaml")

	factory := declarative.NewTeamFactory(
	    declarative.WithProvider("", provider),
	    declarative.WithLogger(logger),
	)
	eng, err := factory.Build(def)
	answer, tr, err := eng.Run(ctx, "write a parser", "")
*/
package declarative

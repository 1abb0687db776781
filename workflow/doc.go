// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package workflow 定义团队执行所沿的工作流图。

# 概述

Graph 是不可变的有向图，节点分为四类：

  - NodeStart     — 唯一入口
  - NodeActivity  — 绑定到一个 Agent；没有出边的 Activity 为动态节点，
    下一跳由 Trace 的 route 值决定
  - NodeExclusive — 排他网关，按声明顺序求值出边上的 Guard，
    第一个为真的边胜出，无 Guard 的边作为默认边
  - NodeEnd       — 终止节点

# 构建

GraphBuilder 以链式调用声明节点与边，Build 时一次性校验：唯一 Start、
至少一个 End、边目标存在、网关至多一条默认边、非动态图中所有节点可达。
所有问题以 *GraphError 汇总返回。

	g, err := workflow.NewGraphBuilder().
	    AddStart("start").
	    AddActivity("Mediator").
	    AddActivity("Coder").
	    AddEnd("end").
	    From("start").Link("Mediator").
	    From("Coder").Link("Mediator").
	    Build()

# 运行期解析

ResolveNextNode 根据当前节点与 State 计算下一跳。动态路由指向
未知节点、网关没有可走的边，都以 *GraphError 报告。

Guard 表达式由子包 guard 编译。
*/
package workflow

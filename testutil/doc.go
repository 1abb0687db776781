// 版权所有 2024 AgentTeam Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package testutil 提供团队编排测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue
  - Trace 辅助: StepSources 提取步骤来源序列

# 子包

  - testutil/mocks: MockProvider，支持固定响应、脚本化逐次响应与错误注入
  - testutil/fixtures: RecordingAgent、投标 Agent、线性图与星形图工厂

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewScriptedProvider("Coder", "Reviewer", "FINISH: done")
	answer, tr, err := engine.Run(ctx, "task", "session-1")
*/
package testutil

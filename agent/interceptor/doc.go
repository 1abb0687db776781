// Package interceptor 提供决策周期的拦截器链。
//
// 内置拦截器：
//   - LoopBreaker：同一 Agent 连续被选中 N 次时否决决策
//   - IterationBudget：独立于 MaxIterations 的决策次数上限
//   - Audit：以 zap 结构化日志记录每个钩子
//   - Approval：通过 hitl.Approver 进行人工审批
package interceptor

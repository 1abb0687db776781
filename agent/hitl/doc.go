// Package hitl 提供 Human-in-the-Loop 审批能力。
//
// InterruptManager 在决策提交前挂起当前调用，等待人工 Resolve、Cancel
// 或超时；Approver 接口把审批与交互界面解耦，AutoApprove/AutoDeny
// 用于无人值守运行和测试。
package hitl

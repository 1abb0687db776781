// Package trace 定义一次团队任务调用的执行状态：路由、迭代计数、
// 追加式步骤日志、一次性最终答案以及按类型划分的 scratch 记账空间。
//
// Trace 满足 workflow.State，排他网关的 guard 直接读取它的命名值。
package trace

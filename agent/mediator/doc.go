// Package mediator 实现团队的决策任务（Mediator / Supervisor）。
//
// Mediator 绑定在决策 Activity 上，每次被调用运行一个决策周期：
// 协议闸门、拦截器前置钩子、终止检查、提示词构建、带线性退避的模型调用、
// 决策解析与路由提交。ParseDecision 与 Guard 可以单独使用。
package mediator

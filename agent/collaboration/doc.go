// Package collaboration 定义团队决策使用的协调规约（Protocol）及其内置实现。
//
// 内置模式：Sequential、Hierarchical、ContractNet、Blackboard、Swarm、
// MarketBased、A2A 与 None。协议在构建期通过 New 选定一次，
// 运行期由决策任务按固定顺序调用它的钩子。协议实例无状态，
// 每次运行的记账数据存放在 Trace 的 scratch 中。
package collaboration

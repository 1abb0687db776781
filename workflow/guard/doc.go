// Package guard 实现排他网关使用的小型条件表达式语言。
//
// 表达式在构建期编译一次为语法树，运行期对 Trace 的命名值求值：
//
//	route == "Coder"
//	iteration >= 3 && final_answer != ""
//	!(scratch.approved == "yes")
package guard

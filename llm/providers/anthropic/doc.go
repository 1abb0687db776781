// Package anthropic 基于 anthropic-sdk-go 实现 llm.Provider，
// 将统一的 ChatRequest 转换为 Messages API 请求。
package anthropic

// Package providers 包含各 LLM Provider 共享的配置与错误映射，
// 具体实现位于 anthropic 与 openai 子包。
package providers

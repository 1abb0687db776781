// Package openai 基于 openai-go 实现 llm.Provider，
// 同时适用于任何兼容 Chat Completions 协议的服务（通过 BaseURL 指定）。
package openai

package providers

import "time"

// BaseProviderConfig 所有 Provider 共享的基础配置字段。
// 通过嵌入此结构体，各 Provider 的 Config 自动获得 APIKey、BaseURL、Model、Timeout 等字段。
type BaseProviderConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// OpenAIConfig OpenAI Provider 配置
type OpenAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Organization       string `json:"organization,omitempty" yaml:"organization,omitempty"`
}

// ClaudeConfig Claude Provider 配置
type ClaudeConfig struct {
	BaseProviderConfig `yaml:",inline"`
}

// ResolveMaxTokens 返回请求级 max tokens，未设置时回退到配置值或 fallback。
func ResolveMaxTokens(req, cfg, fallback int) int {
	if req > 0 {
		return req
	}
	if cfg > 0 {
		return cfg
	}
	return fallback
}

// ResolveModel 返回请求级模型名，未设置时回退到配置值或 fallback。
func ResolveModel(req, cfg, fallback string) string {
	if req != "" {
		return req
	}
	if cfg != "" {
		return cfg
	}
	return fallback
}

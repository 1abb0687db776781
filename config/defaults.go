// =============================================================================
// 📦 AgentTeam 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/agentteam/agent/persistence"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Team:      DefaultTeamConfig(),
		LLM:       DefaultLLMConfig(),
		Store:     persistence.DefaultStoreConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultTeamConfig 返回默认团队参数
func DefaultTeamConfig() TeamConfig {
	return TeamConfig{
		Protocol:      "hierarchical",
		MaxIterations: 10,
		MaxRetries:    3,
		RetryDelay:    time.Second,
		FinishMarker:  "FINISH",
		HistoryWindow: 10,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "openai",
		APIKey:          "",
		BaseURL:         "",
		Model:           "gpt-4o-mini",
		Timeout:         2 * time.Minute,
		RateLimitRPS:    0,
		RateLimitBurst:  1,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:       false,
		OTLPEndpoint:  "localhost:4317",
		Insecure:      true,
		ServiceName:   "agentteam",
		SampleRate:    0.1,
		ExportMetrics: false,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Addr:      ":9091",
		Namespace: "agentteam",
	}
}

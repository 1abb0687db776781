package agent

import "errors"

var (
	// ErrProviderNotSet LLM Provider 未设置
	ErrProviderNotSet = errors.New("llm provider not set")

	// ErrEstimateUnsupported Agent 不支持投标
	ErrEstimateUnsupported = errors.New("agent does not support estimate")
)

package team

import (
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/persistence"
	"github.com/BaSui01/agentteam/internal/metrics"
)

// Option 配置 Engine。
type Option func(*Engine)

// WithLogger 设置日志记录器。
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics 设置 Prometheus 指标收集器。
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithStore 设置 Trace 持久化存储，默认使用进程内存储。
func WithStore(store persistence.TraceStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.store = store
		}
	}
}

// WithName 设置团队名，作为嵌套 Agent 时的注册名。
func WithName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.name = name
		}
	}
}

// WithDescription 设置团队描述，出现在上层决策提示词中。
func WithDescription(desc string) Option {
	return func(e *Engine) { e.description = desc }
}

// WithMaxIterations 设置每次运行的决策轮数上限。
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithMaxSteps 设置每次运行的 Activity 派发上限，
// 默认 MaxIterations × Activity 数 + 1。
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithMaxDepth 设置团队嵌套深度上限。
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithCandidates 显式指定路由候选 Agent，默认取图中所有非 Coordinator 的 Activity。
func WithCandidates(names ...string) Option {
	return func(e *Engine) {
		e.candidates = append([]string(nil), names...)
	}
}

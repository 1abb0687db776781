// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record 方法对 nil 接收者安全，
// 未配置指标的组件直接传 nil。
type Collector struct {
	// 团队运行指标
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	activeRuns  prometheus.Gauge

	// 决策指标
	decisionsTotal    *prometheus.CounterVec
	decisionRetries   *prometheus.CounterVec
	terminationsTotal *prometheus.CounterVec

	// 模型调用指标
	modelCallDuration *prometheus.HistogramVec
	llmRequestsTotal  *prometheus.CounterVec
	llmTokensUsed     *prometheus.CounterVec

	// Agent 指标
	agentInvocationsTotal   *prometheus.CounterVec
	agentInvocationDuration *prometheus.HistogramVec

	// 存储指标
	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到 Prometheus 默认 Registry。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegisterer(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegisterer 创建注册到指定 Registerer 的收集器。
func NewCollectorWithRegisterer(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 团队运行指标
	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "team_runs_total",
			Help:      "Total number of team runs",
		},
		[]string{"team", "status"}, // status: completed, failed, cancelled
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "team_run_duration_seconds",
			Help:      "Team run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"team"},
	)

	c.activeRuns = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "team_active_runs",
			Help:      "Number of team runs in progress",
		},
	)

	// 决策指标
	c.decisionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of decision cycles by outcome",
		},
		[]string{"protocol", "outcome"},
	)

	c.decisionRetries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_retries_total",
			Help:      "Total number of retried decision model calls",
		},
		[]string{"protocol"},
	)

	c.terminationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Total number of forced terminations by reason",
		},
		[]string{"reason"},
	)

	// 模型调用指标
	c.modelCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Decision model call latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// Agent 指标
	c.agentInvocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_invocations_total",
			Help:      "Total number of agent invocations",
		},
		[]string{"agent", "status"},
	)

	c.agentInvocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_invocation_duration_seconds",
			Help:      "Agent invocation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)

	// 存储指标
	c.storeOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of trace store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	c.storeOpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Trace store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🏃 团队运行
// =============================================================================

// RunStarted 记录运行开始，返回在运行结束时调用的回调。
func (c *Collector) RunStarted(team string) func(status string) {
	if c == nil {
		return func(string) {}
	}
	start := time.Now()
	c.activeRuns.Inc()
	return func(status string) {
		c.activeRuns.Dec()
		c.runsTotal.WithLabelValues(team, status).Inc()
		c.runDuration.WithLabelValues(team).Observe(time.Since(start).Seconds())
	}
}

// =============================================================================
// 🧭 决策
// =============================================================================

// RecordDecision 记录一次决策周期的结果
func (c *Collector) RecordDecision(protocol, outcome string) {
	if c == nil {
		return
	}
	c.decisionsTotal.WithLabelValues(protocol, outcome).Inc()
}

// RecordRetry 记录一次决策模型调用重试
func (c *Collector) RecordRetry(protocol string) {
	if c == nil {
		return
	}
	c.decisionRetries.WithLabelValues(protocol).Inc()
}

// RecordTermination 记录强制终止
func (c *Collector) RecordTermination(reason string) {
	if c == nil {
		return
	}
	c.terminationsTotal.WithLabelValues(reason).Inc()
}

// =============================================================================
// 🤖 模型调用
// =============================================================================

// RecordModelCall 记录决策模型调用耗时
func (c *Collector) RecordModelCall(provider, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.modelCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// RecordLLMRequest 记录 LLM 请求与 token 用量
func (c *Collector) RecordLLMRequest(provider, model, status string, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🎭 Agent
// =============================================================================

// RecordAgentInvocation 记录 Agent 调用
func (c *Collector) RecordAgentInvocation(agent, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.agentInvocationsTotal.WithLabelValues(agent, status).Inc()
	c.agentInvocationDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// =============================================================================
// 🗄️ 存储
// =============================================================================

// RecordStoreOp 记录 Trace 存储操作
func (c *Collector) RecordStoreOp(backend, operation string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	c.storeOpsTotal.WithLabelValues(backend, operation, Status(err)).Inc()
	c.storeOpDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// Status 把错误归类为指标标签
func Status(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}

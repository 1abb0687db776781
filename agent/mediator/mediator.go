package mediator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent"
	"github.com/BaSui01/agentteam/agent/collaboration"
	"github.com/BaSui01/agentteam/agent/interceptor"
	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/internal/metrics"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/llm/retry"
	"github.com/BaSui01/agentteam/llm/tokenizer"
	"github.com/BaSui01/agentteam/types"
)

const instrumentationName = "github.com/BaSui01/agentteam/agent/mediator"

// 默认配置
const (
	DefaultName          = "Mediator"
	DefaultFinishMarker  = "FINISH"
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = time.Second
	DefaultHistoryWindow = 10
)

// Config 决策任务配置
type Config struct {
	Name         string `yaml:"name" json:"name"`
	BasePrompt   string `yaml:"base_prompt" json:"base_prompt"`
	FinishMarker string `yaml:"finish_marker" json:"finish_marker"`
	MaxRetries   int    `yaml:"max_retries" json:"max_retries"`
	// RetryDelay 线性退避的基础延迟，负数表示不等待
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// HistoryWindow 决策提示词包含的最近步骤数，负数表示完整历史
	HistoryWindow int `yaml:"history_window" json:"history_window"`
	// HistoryTokenBudget 历史片段的 token 上限，0 表示不限
	HistoryTokenBudget int `yaml:"history_token_budget" json:"history_token_budget"`
	// TerminalRoute 终止路由名，为空时使用 collaboration.RouteFinish，由引擎映射到 End 节点
	TerminalRoute string        `yaml:"terminal_route" json:"terminal_route"`
	Model         string        `yaml:"model" json:"model"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Name:          DefaultName,
		BasePrompt:    DefaultBasePrompt,
		FinishMarker:  DefaultFinishMarker,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		HistoryWindow: DefaultHistoryWindow,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.BasePrompt == "" {
		c.BasePrompt = d.BasePrompt
	}
	if c.FinishMarker == "" {
		c.FinishMarker = d.FinishMarker
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	switch {
	case c.RetryDelay == 0:
		c.RetryDelay = d.RetryDelay
	case c.RetryDelay < 0:
		c.RetryDelay = 0
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = d.HistoryWindow
	}
	if c.TerminalRoute == "" {
		c.TerminalRoute = collaboration.RouteFinish
	}
}

// Option 配置 Mediator
type Option func(*Mediator)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mediator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithInterceptors 设置拦截器链
func WithInterceptors(chain *interceptor.Chain) Option {
	return func(m *Mediator) { m.chain = chain }
}

// WithMetrics 设置指标收集器
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Mediator) { m.metrics = c }
}

// WithMembers 提供成员描述，用于决策提示词中的团队名单
func WithMembers(members ...agent.Agent) Option {
	return func(m *Mediator) {
		for _, a := range members {
			m.descriptions[a.Name()] = a.Description()
		}
	}
}

// WithTokenizer 覆盖历史预算使用的分词器
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(m *Mediator) { m.tokenizer = t }
}

// WithLoopDetector 覆盖默认的循环检测参数
func WithLoopDetector(d LoopDetector) Option {
	return func(m *Mediator) { m.guard.Loop = d }
}

// Mediator 是绑定在决策 Activity 上的 Agent：每次 Invoke 运行一个决策周期，
// 把下一个路由写入 Trace。
type Mediator struct {
	cfg          Config
	provider     llm.Provider
	protocol     collaboration.Protocol
	chain        *interceptor.Chain
	guard        Guard
	retryer      retry.Retryer
	tokenizer    tokenizer.Tokenizer
	descriptions map[string]string
	metrics      *metrics.Collector
	tracer       oteltrace.Tracer
	logger       *zap.Logger
}

// New 创建决策任务。只有 Director 协议（例如 Sequential）可以不提供 provider。
func New(cfg Config, provider llm.Provider, protocol collaboration.Protocol, opts ...Option) (*Mediator, error) {
	if protocol == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "mediator: protocol is required")
	}
	if provider == nil {
		if _, ok := protocol.(collaboration.Director); !ok {
			return nil, types.NewError(types.ErrConfigInvalid, "mediator: llm provider is required").WithCause(agent.ErrProviderNotSet)
		}
	}
	cfg.applyDefaults()

	m := &Mediator{
		cfg:          cfg,
		provider:     provider,
		protocol:     protocol,
		guard:        NewGuard(cfg.FinishMarker),
		descriptions: make(map[string]string),
		tracer:       otel.Tracer(instrumentationName),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "mediator"), zap.String("protocol", protocol.Name()))
	if m.tokenizer == nil {
		tokenizer.RegisterOpenAITokenizers()
		m.tokenizer = tokenizer.GetTokenizerOrEstimator(cfg.Model)
	}

	m.retryer = retry.NewBackoffRetryer(&retry.RetryPolicy{
		MaxAttempts: cfg.MaxRetries,
		Delay:       cfg.RetryDelay,
		Backoff:     retry.BackoffLinear,
		Retryable:   llm.IsRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			m.metrics.RecordRetry(protocol.Name())
			m.logger.Warn("decision model call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}, m.logger)

	return m, nil
}

// Config 返回生效的配置
func (m *Mediator) Config() Config { return m.cfg }

func (m *Mediator) Name() string { return m.cfg.Name }

func (m *Mediator) Description() string {
	return "Decides which team member acts next (" + m.protocol.Name() + " protocol)."
}

// Estimate 决策任务不参与投标
func (m *Mediator) Estimate(context.Context, string) (agent.Proposal, error) {
	return agent.Proposal{}, agent.ErrEstimateUnsupported
}

// RecordsOwnSteps 决策任务自己写入决策步骤
func (m *Mediator) RecordsOwnSteps() bool { return true }

// Invoke 运行一个决策周期，返回提交的路由。
//
// 不可解析的决策、协议否决与终止条件都在本地恢复为终止路由；
// 只有模型调用在重试后仍失败以及拦截器报错才返回错误，此时 Trace 已被标记终止。
func (m *Mediator) Invoke(ctx context.Context, _ string, tr *trace.Trace) (route string, err error) {
	ctx, span := m.tracer.Start(ctx, "mediator.decide",
		oteltrace.WithAttributes(
			attribute.String("team.protocol", m.protocol.Name()),
			attribute.String("team.trace_id", tr.ID()),
			attribute.Int("team.iteration", tr.Iteration()),
		))
	defer func() {
		span.SetAttributes(attribute.String("team.route", route))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// 1. 协议不需要决策
	if !m.protocol.ShouldRun(tr) {
		m.metrics.RecordDecision(m.protocol.Name(), "skipped")
		return tr.Route(), nil
	}

	// 2. 前置闸门
	cont, vetoedBy, err := m.chain.BeforeDecision(ctx, tr)
	if err != nil {
		return "", m.fatal(tr, err)
	}
	if !cont {
		return m.stop(tr, "vetoed", "decision vetoed by interceptor "+vetoedBy), nil
	}

	// 3. 终止检查
	if stop, reason := m.guard.Check(tr); stop {
		return m.stop(tr, string(reason), "terminated: "+string(reason)), nil
	}
	if ctx.Err() != nil {
		return m.stop(tr, string(ReasonCancelled), "terminated: "+ctx.Err().Error()), nil
	}

	outcome := "routed"
	var raw string
	if d, ok := m.protocol.(collaboration.Director); ok {
		if r, ok := d.Direct(tr); ok {
			raw, route, outcome = r, r, "directed"
		}
	}

	if route == "" {
		// 4-6. 构建提示词并调用模型
		raw, err = m.callModel(ctx, tr)
		if err != nil {
			if llm.IsInvalidRequest(err) {
				tr.AppendStep(m.cfg.Name, "decision request rejected by model: "+err.Error(), trace.StepError)
				m.metrics.RecordDecision(m.protocol.Name(), "invalid_request")
				return m.commit(ctx, tr, "", m.cfg.TerminalRoute)
			}
			return "", m.fatal(tr, types.NewError(types.ErrModelCallFailed, "decision model call failed").
				WithCause(err).WithRetryable(llm.IsRetryable(err)))
		}
		tr.SetLastDecision(raw)

		// 7. 模型调用后钩子
		if err := m.chain.AfterModelCall(ctx, tr, raw); err != nil {
			return "", m.fatal(tr, err)
		}

		// 8. 协议优先，其次通用解析
		route, outcome = m.resolve(tr, raw)
	} else {
		tr.SetLastDecision(raw)
	}

	if route == collaboration.RouteFinish {
		route = m.cfg.TerminalRoute
	}

	// 9. 协议否决
	if route != m.cfg.TerminalRoute && !m.protocol.AcceptsRoute(tr, raw) {
		tr.AppendStep(m.cfg.Name, fmt.Sprintf("route %s rejected by %s protocol", route, m.protocol.Name()), trace.StepDiagnostic)
		route, outcome = m.cfg.TerminalRoute, "rejected"
	}

	m.metrics.RecordDecision(m.protocol.Name(), outcome)
	// 10. 提交
	return m.commit(ctx, tr, raw, route)
}

// resolve 把原始决策解析为路由，返回路由与结果标签。
func (m *Mediator) resolve(tr *trace.Trace, raw string) (string, string) {
	if r, ok := m.protocol.ResolveRoute(tr, raw); ok {
		return r, "resolved"
	}

	d := ParseDecision(raw, tr.Agents(), m.cfg.FinishMarker)
	switch d.Kind {
	case DecisionRoute:
		if d.Fuzzy {
			return d.Route, "fuzzy"
		}
		return d.Route, "routed"
	case DecisionFinish:
		answer := d.Answer
		if answer == "" {
			answer = tr.LastOutput()
		}
		tr.SetFinalAnswer(answer)
		return m.cfg.TerminalRoute, "finish"
	case DecisionUnmatched:
		tr.AppendStep(m.cfg.Name, "decision did not name a known agent: "+raw, trace.StepDiagnostic)
		m.logger.Warn("unparseable decision", zap.String("trace_id", tr.ID()), zap.String("raw", raw))
		return m.cfg.TerminalRoute, "unmatched"
	default:
		tr.AppendStep(m.cfg.Name, "empty decision", trace.StepDiagnostic)
		return m.cfg.TerminalRoute, "empty"
	}
}

// commit 执行步骤 10 以及决策后钩子。
func (m *Mediator) commit(ctx context.Context, tr *trace.Trace, raw, route string) (string, error) {
	tr.CommitRoute(route)
	// 协议只看到抽象的结束信号，不关心终止节点叫什么
	if route == m.cfg.TerminalRoute {
		m.protocol.OnRouted(tr, collaboration.RouteFinish)
	} else {
		m.protocol.OnRouted(tr, route)
	}
	tr.AppendStep(m.cfg.Name, route, trace.StepDecision)
	tr.IncrementIteration()

	m.logger.Debug("route committed",
		zap.String("trace_id", tr.ID()),
		zap.String("route", route),
		zap.Int("iteration", tr.Iteration()),
	)

	if err := m.chain.AfterDecision(ctx, tr, route); err != nil {
		return "", m.fatal(tr, err)
	}
	if tr.Cancelled() && route != m.cfg.TerminalRoute {
		tr.SetRoute(m.cfg.TerminalRoute)
		return m.cfg.TerminalRoute, nil
	}
	return route, nil
}

// callModel 按线性退避重试调用模型。
func (m *Mediator) callModel(ctx context.Context, tr *trace.Trace) (string, error) {
	system := m.systemPrompt(tr)
	user := m.userPrompt(tr)

	opts := []llm.CompleteOption{llm.WithTraceID(tr.ID())}
	if m.cfg.Model != "" {
		opts = append(opts, llm.WithModel(m.cfg.Model))
	}
	if m.cfg.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(m.cfg.Timeout))
	}

	raw, err := retry.DoWithResultTyped(m.retryer, ctx, func() (string, error) {
		start := time.Now()
		out, err := llm.Complete(ctx, m.provider, system, user, nil, opts...)
		status := "success"
		if err != nil {
			status = string(llmCode(err))
		}
		m.metrics.RecordModelCall(m.provider.Name(), status, time.Since(start))
		return out, err
	})
	if errors.Is(err, retry.ErrExhausted) {
		m.logger.Error("decision model call exhausted retries", zap.Error(err))
	}
	return raw, err
}

// stop 在不提交决策的情况下把路由设为终止节点（步骤 2、3）。
func (m *Mediator) stop(tr *trace.Trace, metricReason, diagnostic string) string {
	tr.AppendStep(m.cfg.Name, diagnostic, trace.StepDiagnostic)
	tr.SetRoute(m.cfg.TerminalRoute)
	m.metrics.RecordTermination(metricReason)
	m.metrics.RecordDecision(m.protocol.Name(), "terminated")
	m.logger.Info("decision cycle stopped",
		zap.String("trace_id", tr.ID()),
		zap.String("reason", metricReason),
		zap.Int("iteration", tr.Iteration()),
	)
	return m.cfg.TerminalRoute
}

// fatal 记录错误步骤、把 Trace 标记为终止后返回错误。
func (m *Mediator) fatal(tr *trace.Trace, err error) error {
	tr.AppendStep(m.cfg.Name, err.Error(), trace.StepError)
	tr.SetRoute(m.cfg.TerminalRoute)
	tr.Terminate(err.Error())
	m.metrics.RecordDecision(m.protocol.Name(), "error")
	m.logger.Error("decision cycle failed", zap.String("trace_id", tr.ID()), zap.Error(err))
	return err
}

func llmCode(err error) llm.ErrorCode {
	var e *llm.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "error"
}

package interceptor

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/hitl"
	"github.com/BaSui01/agentteam/agent/trace"
)

// ============================================================================
// LoopBreaker
// ============================================================================

// LoopBreaker 当同一个 Agent 连续被选中 N 次时停止决策。
type LoopBreaker struct {
	Base
	threshold int
}

// NewLoopBreaker 创建 LoopBreaker，threshold < 2 时取 3。
func NewLoopBreaker(threshold int) *LoopBreaker {
	if threshold < 2 {
		threshold = 3
	}
	return &LoopBreaker{threshold: threshold}
}

func (*LoopBreaker) Name() string { return "loop_breaker" }

func (l *LoopBreaker) BeforeDecision(_ context.Context, tr *trace.Trace) (bool, error) {
	history := tr.RouteHistory()
	if len(history) < l.threshold {
		return true, nil
	}
	tail := history[len(history)-l.threshold:]
	for _, r := range tail[1:] {
		if r != tail[0] {
			return true, nil
		}
	}
	tr.AppendStep(l.Name(), fmt.Sprintf("%s was chosen %d times in a row", tail[0], l.threshold), trace.StepDiagnostic)
	return false, nil
}

// ============================================================================
// IterationBudget
// ============================================================================

const budgetCounterNS = "interceptor.iteration_budget"

// IterationBudget 在提交 N 次决策后停止，与 MaxIterations 相互独立。
// 计数保存在 Trace scratch 中，同一实例可被并发运行共享。
type IterationBudget struct {
	Base
	max int
}

func NewIterationBudget(max int) *IterationBudget { return &IterationBudget{max: max} }

func (*IterationBudget) Name() string { return "iteration_budget" }

func (b *IterationBudget) BeforeDecision(_ context.Context, tr *trace.Trace) (bool, error) {
	if b.max <= 0 {
		return true, nil
	}
	if used := tr.Counter(budgetCounterNS, "decisions"); used >= b.max {
		tr.AppendStep(b.Name(), fmt.Sprintf("decision budget of %d exhausted", b.max), trace.StepDiagnostic)
		return false, nil
	}
	return true, nil
}

func (b *IterationBudget) AfterDecision(_ context.Context, tr *trace.Trace, _ string) error {
	tr.IncrCounter(budgetCounterNS, "decisions")
	return nil
}

// ============================================================================
// Audit
// ============================================================================

// Audit 把每个钩子记录为结构化日志。
type Audit struct {
	logger *zap.Logger
}

func NewAudit(logger *zap.Logger) *Audit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Audit{logger: logger.With(zap.String("component", "audit"))}
}

func (*Audit) Name() string { return "audit" }

func (a *Audit) BeforeDecision(_ context.Context, tr *trace.Trace) (bool, error) {
	a.logger.Info("before decision",
		zap.String("trace_id", tr.ID()),
		zap.String("session_id", tr.SessionID()),
		zap.Int("iteration", tr.Iteration()),
		zap.Int("steps", tr.StepCount()),
	)
	return true, nil
}

func (a *Audit) AfterModelCall(_ context.Context, tr *trace.Trace, raw string) error {
	a.logger.Info("model responded",
		zap.String("trace_id", tr.ID()),
		zap.Int("iteration", tr.Iteration()),
		zap.String("raw", truncate(raw, 200)),
	)
	return nil
}

func (a *Audit) AfterDecision(_ context.Context, tr *trace.Trace, route string) error {
	a.logger.Info("decision committed",
		zap.String("trace_id", tr.ID()),
		zap.Int("iteration", tr.Iteration()),
		zap.String("route", route),
	)
	return nil
}

// truncate 最多保留 n 字节，切点退到 rune 边界
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// ============================================================================
// Approval
// ============================================================================

// Approval 在路由提交后请求人工审批。被拒绝时取消 Trace，
// 引擎在下一次 Activity 派发前转入终止节点。
type Approval struct {
	Base
	approver hitl.Approver
	routes   map[string]bool
	timeout  time.Duration
	logger   *zap.Logger
}

// NewApproval 创建审批拦截器。routes 非空时只审批这些目标。
func NewApproval(approver hitl.Approver, logger *zap.Logger, routes ...string) *Approval {
	if approver == nil {
		approver = hitl.AutoApprove()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Approval{
		approver: approver,
		logger:   logger.With(zap.String("component", "approval")),
	}
	if len(routes) > 0 {
		a.routes = make(map[string]bool, len(routes))
		for _, r := range routes {
			a.routes[r] = true
		}
	}
	return a
}

// WithTimeout 限制单次审批的等待时间。
func (a *Approval) WithTimeout(d time.Duration) *Approval {
	a.timeout = d
	return a
}

func (*Approval) Name() string { return "approval" }

func (a *Approval) AfterDecision(ctx context.Context, tr *trace.Trace, route string) error {
	if a.routes != nil && !a.routes[route] {
		return nil
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	approved, err := a.approver.Approve(ctx, hitl.ApprovalRequest{
		SessionID: tr.SessionID(),
		Node:      tr.CurrentNode(),
		Route:     route,
		Decision:  tr.LastDecision(),
		Iteration: tr.Iteration(),
	})
	if err != nil {
		return fmt.Errorf("approval for route %s: %w", route, err)
	}
	if !approved {
		a.logger.Info("route rejected", zap.String("trace_id", tr.ID()), zap.String("route", route))
		tr.AppendStep(a.Name(), "route to "+route+" rejected by approver", trace.StepDiagnostic)
		tr.Cancel()
	}
	return nil
}

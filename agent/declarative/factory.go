package declarative

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent"
	"github.com/BaSui01/agentteam/agent/collaboration"
	"github.com/BaSui01/agentteam/agent/hitl"
	"github.com/BaSui01/agentteam/agent/interceptor"
	"github.com/BaSui01/agentteam/agent/mediator"
	"github.com/BaSui01/agentteam/agent/persistence"
	"github.com/BaSui01/agentteam/agent/team"
	"github.com/BaSui01/agentteam/internal/metrics"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/llm/retry"
	"github.com/BaSui01/agentteam/types"
	"github.com/BaSui01/agentteam/workflow"
	"github.com/BaSui01/agentteam/workflow/guard"
)

// 内置审批器名称
const (
	ApproverAuto = "auto_approve"
	ApproverDeny = "auto_deny"
)

// TeamFactory turns a TeamDefinition into a runnable team.Engine.
//
// Providers are registered by name; an agent or mediator with an empty
// provider name uses the provider registered under "".
type TeamFactory struct {
	providers map[string]llm.Provider
	approvers map[string]hitl.Approver
	store     persistence.TraceStore
	metrics   *metrics.Collector
	base      *zap.Logger
	logger    *zap.Logger
}

// FactoryOption configures a TeamFactory.
type FactoryOption func(*TeamFactory)

// WithProvider registers a named LLM provider; name "" is the default.
func WithProvider(name string, p llm.Provider) FactoryOption {
	return func(f *TeamFactory) { f.providers[name] = p }
}

// WithApprover registers a named approver for approval interceptors.
func WithApprover(name string, a hitl.Approver) FactoryOption {
	return func(f *TeamFactory) { f.approvers[name] = a }
}

// WithStore sets the trace store shared by every engine the factory builds.
func WithStore(store persistence.TraceStore) FactoryOption {
	return func(f *TeamFactory) { f.store = store }
}

// WithMetrics sets the Prometheus collector.
func WithMetrics(c *metrics.Collector) FactoryOption {
	return func(f *TeamFactory) { f.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *TeamFactory) {
		if logger != nil {
			f.base = logger
		}
	}
}

// NewTeamFactory creates a new TeamFactory.
func NewTeamFactory(opts ...FactoryOption) *TeamFactory {
	f := &TeamFactory{
		providers: make(map[string]llm.Provider),
		approvers: map[string]hitl.Approver{
			ApproverAuto: hitl.AutoApprove(),
			ApproverDeny: hitl.AutoDeny(),
		},
		base: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.base.With(zap.String("component", "team_factory"))
	return f
}

// =============================================================================
// ✅ 校验
// =============================================================================

// Validate checks the definition without building anything. All problems are
// reported together.
func (f *TeamFactory) Validate(def *TeamDefinition) error {
	if def == nil {
		return types.NewError(types.ErrConfigInvalid, "team definition is nil")
	}

	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if def.Name == "" {
		add("name is required")
	}
	pattern, err := collaboration.ParsePattern(def.Protocol)
	if err != nil {
		errs = append(errs, err)
	}
	if def.MaxIterations < 0 || def.MaxSteps < 0 || def.MaxDepth < 0 {
		add("max_iterations, max_steps and max_depth must be non-negative")
	}
	if pattern != "" && pattern != collaboration.PatternNone && def.Mediator == nil {
		add("protocol %q needs a mediator", pattern)
	}

	names := make(map[string]bool)
	if def.Mediator != nil {
		names[mediatorName(def.Mediator)] = true
		for i, it := range def.Mediator.Interceptors {
			if err := f.validateInterceptor(it); err != nil {
				add("mediator.interceptors[%d]: %v", i, err)
			}
		}
	}
	if len(def.Agents) == 0 {
		add("at least one agent is required")
	}
	for i, a := range def.Agents {
		if a.Name == "" {
			add("agents[%d]: name is required", i)
			continue
		}
		if names[a.Name] {
			add("agents[%d]: duplicate agent name %q", i, a.Name)
		}
		names[a.Name] = true

		switch agentType(a) {
		case AgentTypeLLM:
			if a.HistoryWindow < 0 || a.MaxRetries < 0 {
				add("agent %s: history_window and max_retries must be non-negative", a.Name)
			}
		case AgentTypeBidding:
			if a.Concurrency < 0 {
				add("agent %s: concurrency must be non-negative", a.Name)
			}
		case AgentTypeTeam:
			if a.Team == nil {
				add("agent %s: type team needs an inline team definition", a.Name)
			} else if err := f.Validate(nestedDefinition(a)); err != nil {
				add("agent %s: %v", a.Name, err)
			}
		default:
			add("agent %s: unknown type %q", a.Name, a.Type)
		}
	}
	for i, a := range def.Agents {
		for _, b := range a.Bidders {
			if !names[b] {
				add("agents[%d]: bidder %q is not defined", i, b)
			}
		}
	}

	if len(def.Graph.Nodes) == 0 {
		add("graph has no nodes")
	}
	for i, n := range def.Graph.Nodes {
		if n.Name == "" {
			add("graph.nodes[%d]: name is required", i)
		}
		if _, ok := nodeKinds[strings.ToLower(n.Kind)]; !ok {
			add("graph.nodes[%d] %s: unknown kind %q", i, n.Name, n.Kind)
		}
		for _, e := range n.Edges {
			if e.When == "" {
				continue
			}
			if _, err := guard.Compile(e.When); err != nil {
				add("graph.nodes[%d] %s: edge to %s: %v", i, n.Name, e.To, err)
			}
		}
	}

	if len(errs) > 0 {
		return types.NewError(types.ErrConfigInvalid, fmt.Sprintf("team %q is invalid", def.Name)).
			WithCause(errors.Join(errs...))
	}
	return nil
}

func (f *TeamFactory) validateInterceptor(d InterceptorDefinition) error {
	switch d.Type {
	case "loop_breaker":
		if d.Threshold < 0 {
			return fmt.Errorf("threshold must be non-negative")
		}
	case "iteration_budget":
		if d.Max <= 0 {
			return fmt.Errorf("max must be positive")
		}
	case "audit":
	case "approval":
		if d.Approver != "" {
			if _, ok := f.approvers[d.Approver]; !ok {
				return fmt.Errorf("unknown approver %q", d.Approver)
			}
		}
	default:
		return fmt.Errorf("unknown interceptor type %q", d.Type)
	}
	return nil
}

// =============================================================================
// 🏗️ 构建
// =============================================================================

// Build validates def and assembles agents, graph and protocol into an Engine.
func (f *TeamFactory) Build(def *TeamDefinition) (*team.Engine, error) {
	if err := f.Validate(def); err != nil {
		return nil, err
	}
	logger := f.base.With(zap.String("team", def.Name))

	pattern, _ := collaboration.ParsePattern(def.Protocol)
	popts := def.ProtocolOptions
	if popts.FinishMarker == "" && def.Mediator != nil {
		popts.FinishMarker = def.Mediator.FinishMarker
	}
	protocol, err := collaboration.New(pattern, popts)
	if err != nil {
		return nil, err
	}

	// 先建普通成员，招标 Agent 依赖它们
	built := make(map[string]agent.Agent, len(def.Agents))
	var workers []agent.Agent
	for _, a := range def.Agents {
		if agentType(a) == AgentTypeBidding {
			continue
		}
		member, err := f.buildMember(a, logger)
		if err != nil {
			return nil, err
		}
		built[a.Name] = member
		workers = append(workers, member)
	}
	for _, a := range def.Agents {
		if agentType(a) != AgentTypeBidding {
			continue
		}
		bidders := workers
		if len(a.Bidders) > 0 {
			bidders = make([]agent.Agent, 0, len(a.Bidders))
			for _, name := range a.Bidders {
				b, ok := built[name]
				if !ok {
					return nil, types.NewError(types.ErrConfigInvalid,
						fmt.Sprintf("agent %s: bidder %q must be an llm or team member", a.Name, name))
				}
				bidders = append(bidders, b)
			}
		}
		built[a.Name] = collaboration.NewBiddingAgent(a.Name, bidders, a.Concurrency, logger)
	}

	members := make([]agent.Agent, 0, len(def.Agents)+1)
	if def.Mediator != nil {
		med, err := f.buildMediator(def, protocol, workers, logger)
		if err != nil {
			return nil, err
		}
		members = append(members, med)
	}
	for _, a := range def.Agents {
		members = append(members, built[a.Name])
	}
	reg, err := agent.NewRegistry(members...)
	if err != nil {
		return nil, err
	}

	graph, err := f.buildGraph(def.Graph)
	if err != nil {
		return nil, types.NewError(types.ErrGraphInvalid, fmt.Sprintf("team %s: graph", def.Name)).WithCause(err)
	}

	opts := []team.Option{
		team.WithName(def.Name),
		team.WithMaxIterations(def.MaxIterations),
		team.WithMaxSteps(def.MaxSteps),
		team.WithMaxDepth(def.MaxDepth),
		team.WithLogger(f.base),
		team.WithMetrics(f.metrics),
		team.WithStore(f.store),
	}
	if def.Description != "" {
		opts = append(opts, team.WithDescription(def.Description))
	}
	if len(def.Candidates) > 0 {
		opts = append(opts, team.WithCandidates(def.Candidates...))
	}

	eng, err := team.Build(graph, reg, protocol, opts...)
	if err != nil {
		return nil, err
	}
	f.logger.Info("team built from definition",
		zap.String("team", def.Name),
		zap.String("protocol", protocol.Name()),
		zap.Int("agents", reg.Len()),
		zap.Int("nodes", len(graph.Nodes())),
	)
	return eng, nil
}

func (f *TeamFactory) buildMember(a AgentDefinition, logger *zap.Logger) (agent.Agent, error) {
	switch agentType(a) {
	case AgentTypeTeam:
		return f.Build(nestedDefinition(a))
	default:
		provider, err := f.provider(a.Provider)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.Name, err)
		}
		var retryer retry.Retryer
		if a.MaxRetries > 0 {
			policy := retry.DefaultRetryPolicy()
			policy.MaxAttempts = a.MaxRetries
			if a.RetryDelay > 0 {
				policy.Delay = a.RetryDelay
			}
			policy.Retryable = llm.IsRetryable
			retryer = retry.NewBackoffRetryer(policy, logger)
		}
		return agent.NewLLMAgent(agent.LLMConfig{
			Name:          a.Name,
			Description:   a.Description,
			SystemPrompt:  a.SystemPrompt,
			Model:         a.Model,
			HistoryWindow: a.HistoryWindow,
			Bid:           a.Bid,
		}, provider, retryer, logger)
	}
}

func (f *TeamFactory) buildMediator(def *TeamDefinition, protocol collaboration.Protocol, workers []agent.Agent, logger *zap.Logger) (*mediator.Mediator, error) {
	md := def.Mediator

	// 只有 Director 协议可以没有模型，交给 mediator.New 判断
	provider, err := f.provider(md.Provider)
	if err != nil && md.Provider != "" {
		return nil, fmt.Errorf("mediator: %w", err)
	}

	items := make([]interceptor.Interceptor, 0, len(md.Interceptors))
	for _, d := range md.Interceptors {
		items = append(items, f.buildInterceptor(d, logger))
	}

	cfg := mediator.Config{
		Name:               mediatorName(md),
		BasePrompt:         md.BasePrompt,
		FinishMarker:       md.FinishMarker,
		MaxRetries:         md.MaxRetries,
		RetryDelay:         md.RetryDelay,
		HistoryWindow:      md.HistoryWindow,
		HistoryTokenBudget: md.HistoryTokenBudget,
		TerminalRoute:      terminalNode(def.Graph),
		Model:              md.Model,
		Timeout:            md.Timeout,
	}
	return mediator.New(cfg, provider, protocol,
		mediator.WithLogger(logger),
		mediator.WithMetrics(f.metrics),
		mediator.WithInterceptors(interceptor.NewChain(logger, items...)),
		mediator.WithMembers(workers...),
	)
}

func (f *TeamFactory) buildInterceptor(d InterceptorDefinition, logger *zap.Logger) interceptor.Interceptor {
	switch d.Type {
	case "loop_breaker":
		return interceptor.NewLoopBreaker(d.Threshold)
	case "iteration_budget":
		return interceptor.NewIterationBudget(d.Max)
	case "audit":
		return interceptor.NewAudit(logger)
	default:
		approver := f.approvers[d.Approver]
		a := interceptor.NewApproval(approver, logger, d.Routes...)
		if d.Timeout > 0 {
			a.WithTimeout(d.Timeout)
		}
		return a
	}
}

func (f *TeamFactory) buildGraph(def GraphDefinition) (*workflow.Graph, error) {
	b := workflow.NewGraphBuilder().WithLogger(f.base)
	for _, n := range def.Nodes {
		switch nodeKinds[strings.ToLower(n.Kind)] {
		case workflow.NodeStart:
			b.AddStart(n.Name)
		case workflow.NodeActivity:
			agentName := n.Agent
			if agentName == "" {
				agentName = n.Name
			}
			b.AddActivityNamed(n.Name, agentName)
		case workflow.NodeExclusive:
			b.AddExclusive(n.Name)
		case workflow.NodeEnd:
			b.AddEnd(n.Name)
		}

		for _, e := range n.Edges {
			if e.When == "" {
				b.Link(e.To)
				continue
			}
			g, label, err := guard.Parse(e.When)
			if err != nil {
				return nil, fmt.Errorf("node %s: edge to %s: %w", n.Name, e.To, err)
			}
			b.LinkIfLabeled(e.To, g, label)
		}
	}
	return b.Build()
}

func (f *TeamFactory) provider(name string) (llm.Provider, error) {
	if p, ok := f.providers[name]; ok && p != nil {
		return p, nil
	}
	if name == "" {
		return nil, agent.ErrProviderNotSet
	}
	return nil, fmt.Errorf("llm provider %q is not registered", name)
}

// =============================================================================
// 🔧 辅助
// =============================================================================

var nodeKinds = map[string]workflow.NodeKind{
	"start":     workflow.NodeStart,
	"activity":  workflow.NodeActivity,
	"exclusive": workflow.NodeExclusive,
	"end":       workflow.NodeEnd,
}

func agentType(a AgentDefinition) AgentType {
	if a.Type == "" {
		return AgentTypeLLM
	}
	return AgentType(strings.ToLower(string(a.Type)))
}

func mediatorName(md *MediatorDefinition) string {
	if md.Name == "" {
		return mediator.DefaultName
	}
	return md.Name
}

// nestedDefinition 返回以成员名命名的内联团队定义。
func nestedDefinition(a AgentDefinition) *TeamDefinition {
	sub := *a.Team
	sub.Name = a.Name
	if sub.Description == "" {
		sub.Description = a.Description
	}
	return &sub
}

// terminalNode 返回第一个 End 节点名，决策任务把它作为终止路由。
func terminalNode(g GraphDefinition) string {
	for _, n := range g.Nodes {
		if strings.EqualFold(n.Kind, "end") {
			return n.Name
		}
	}
	return ""
}

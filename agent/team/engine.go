package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent"
	"github.com/BaSui01/agentteam/agent/collaboration"
	"github.com/BaSui01/agentteam/agent/persistence"
	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/internal/metrics"
	"github.com/BaSui01/agentteam/types"
	"github.com/BaSui01/agentteam/workflow"
)

const instrumentationName = "github.com/BaSui01/agentteam/agent/team"

const (
	DefaultName          = "team"
	DefaultMaxIterations = 10
	DefaultMaxDepth      = 8
)

// 运行结果状态，用于指标标签
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

var (
	// ErrSessionNotFound 会话既不在运行中也不在存储里。
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionActive 同一会话已有运行在进行。
	ErrSessionActive = errors.New("session is already running")
)

// Engine 在编译好的 Graph 上执行团队任务。
//
// Graph、Registry 与 Protocol 在 Build 之后不可变，可被并发运行的多个 Trace 共享；
// 每次 Run 独占自己的 Trace，整个图的遍历在调用方 goroutine 上同步完成。
// Engine 本身也实现 agent.Agent，可以作为另一个团队的成员嵌套使用。
type Engine struct {
	name          string
	description   string
	graph         *workflow.Graph
	registry      *agent.Registry
	protocol      collaboration.Protocol
	candidates    []string
	routeNodes    map[string]string // Agent 名 -> 绑定的 Activity 节点名
	maxIterations int
	maxSteps      int
	maxDepth      int

	store   persistence.TraceStore
	metrics *metrics.Collector
	tracer  oteltrace.Tracer
	logger  *zap.Logger

	mu   sync.RWMutex
	live map[string]*trace.Trace
}

// Build 校验图与注册表并创建 Engine。每个 Activity 绑定的 Agent 都必须已注册。
// p 为 nil 时使用 None 协议。
func Build(graph *workflow.Graph, reg *agent.Registry, p collaboration.Protocol, opts ...Option) (*Engine, error) {
	if graph == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "team: graph is required")
	}
	if reg == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "team: agent registry is required")
	}
	if p == nil {
		p = collaboration.NewNone()
	}

	e := &Engine{
		name:          DefaultName,
		graph:         graph,
		registry:      reg,
		protocol:      p,
		maxIterations: DefaultMaxIterations,
		maxDepth:      DefaultMaxDepth,
		tracer:        otel.Tracer(instrumentationName),
		logger:        zap.NewNop(),
		live:          make(map[string]*trace.Trace),
	}
	for _, opt := range opts {
		opt(e)
	}

	activities := graph.Activities()
	for _, n := range activities {
		if _, ok := reg.Get(n.Agent); !ok {
			return nil, types.NewError(types.ErrAgentNotFound,
				fmt.Sprintf("team: activity %q is bound to unregistered agent %q", n.Name, n.Agent)).WithNode(n.Name)
		}
	}

	if e.candidates == nil {
		e.candidates = defaultCandidates(activities, reg)
	}
	for _, name := range e.candidates {
		if _, ok := reg.Get(name); !ok {
			return nil, types.NewError(types.ErrAgentNotFound, fmt.Sprintf("team: candidate agent %q is not registered", name))
		}
	}

	routes, err := routeTable(graph, e.candidates)
	if err != nil {
		return nil, err
	}
	e.routeNodes = routes

	if e.maxSteps == 0 {
		e.maxSteps = e.maxIterations*len(activities) + 1
	}
	if e.store == nil {
		e.store = persistence.NewMemoryTraceStore()
	}
	if e.description == "" {
		e.description = fmt.Sprintf("Team of %s", strings.Join(e.candidates, ", "))
	}
	e.logger = e.logger.With(zap.String("component", "team"), zap.String("team", e.name))

	e.logger.Debug("team built",
		zap.String("protocol", p.Name()),
		zap.Strings("candidates", e.candidates),
		zap.Int("max_iterations", e.maxIterations),
		zap.Int("max_steps", e.maxSteps),
	)
	return e, nil
}

// defaultCandidates 按声明顺序收集 Activity 绑定的 Agent，去重并排除 Coordinator。
func defaultCandidates(activities []workflow.Node, reg *agent.Registry) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, n := range activities {
		if seen[n.Agent] {
			continue
		}
		seen[n.Agent] = true
		a, _ := reg.Get(n.Agent)
		if _, ok := a.(agent.Coordinator); ok {
			continue
		}
		out = append(out, n.Agent)
	}
	return out
}

// routeTable 把路由候选映射到它们绑定的 Activity 节点。
// 候选名本身就是节点名时无需映射；否则必须恰好绑定一个 Activity。
func routeTable(graph *workflow.Graph, candidates []string) (map[string]string, error) {
	bound := make(map[string][]string)
	for _, n := range graph.Activities() {
		bound[n.Agent] = append(bound[n.Agent], n.Name)
	}

	routes := make(map[string]string)
	for _, name := range candidates {
		if graph.Has(name) {
			continue
		}
		switch nodes := bound[name]; len(nodes) {
		case 0:
			return nil, types.NewError(types.ErrGraphInvalid,
				fmt.Sprintf("team: candidate agent %q is not bound to any activity", name))
		case 1:
			routes[name] = nodes[0]
		default:
			return nil, types.NewError(types.ErrGraphInvalid,
				fmt.Sprintf("team: candidate agent %q is bound to several activities (%s)", name, strings.Join(nodes, ", ")))
		}
	}
	return routes, nil
}

// routedState 把 Trace 上的 Agent 路由翻译为节点名，供动态 Activity 解析。
type routedState struct {
	*trace.Trace
	routes map[string]string
}

func (s routedState) Route() string {
	r := s.Trace.Route()
	if node, ok := s.routes[r]; ok {
		return node
	}
	return r
}

// Graph 返回团队的图。
func (e *Engine) Graph() *workflow.Graph { return e.graph }

// Protocol 返回团队的协作协议。
func (e *Engine) Protocol() collaboration.Protocol { return e.protocol }

// Candidates 返回路由候选 Agent。
func (e *Engine) Candidates() []string { return append([]string(nil), e.candidates...) }

// Store 返回 Trace 存储。
func (e *Engine) Store() persistence.TraceStore { return e.store }

// =============================================================================
// 🚀 运行
// =============================================================================

// Run 执行一次任务并阻塞到结束。sessionID 为空时自动生成。
//
// 任何致命错误都会留下一个已终止、路由到终止节点并带诊断步骤的 Trace，
// 与错误一起返回。没有终止标记答案时，最终答案取最后一个 Agent 的输出。
func (e *Engine) Run(ctx context.Context, task, sessionID string) (string, *trace.Trace, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	tr := e.newTrace(task, sessionID, "")
	return e.execute(ctx, tr, e.graph.Start())
}

// Resume 继续一个因进程退出而中断的会话，从最后一次检查点所在的节点重新派发。
// 已结束的会话直接返回其结果。
func (e *Engine) Resume(ctx context.Context, sessionID string) (string, *trace.Trace, error) {
	if e.isLive(sessionID) {
		return "", nil, fmt.Errorf("team %s: resume %q: %w", e.name, sessionID, ErrSessionActive)
	}
	tr, err := e.load(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}

	if tr.Terminated() {
		return e.answer(tr), tr, finishedErr(tr)
	}

	from := tr.CurrentNode()
	if from == "" || !e.graph.Has(from) {
		from = e.graph.Start()
	}
	e.logger.Info("resuming session",
		zap.String("session_id", sessionID),
		zap.String("node", from),
		zap.Int("steps", tr.StepCount()),
	)
	return e.execute(ctx, tr, from)
}

// GetTrace 返回会话的 Trace：优先取运行中的实例，其次从存储恢复。
func (e *Engine) GetTrace(ctx context.Context, sessionID string) (*trace.Trace, error) {
	e.mu.RLock()
	tr, ok := e.live[sessionID]
	e.mu.RUnlock()
	if ok {
		return tr, nil
	}
	return e.load(ctx, sessionID)
}

// Cancel 为运行中的会话设置协作式取消标记。
func (e *Engine) Cancel(sessionID string) error {
	e.mu.RLock()
	tr, ok := e.live[sessionID]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("team %s: cancel %q: %w", e.name, sessionID, ErrSessionNotFound)
	}
	tr.Cancel()
	e.logger.Info("session cancel requested", zap.String("session_id", sessionID))
	return nil
}

func (e *Engine) newTrace(task, sessionID, parentID string) *trace.Trace {
	return trace.New(task, e.maxIterations,
		trace.WithSessionID(sessionID),
		trace.WithParent(parentID),
		trace.WithAgents(e.candidates),
	)
}

func (e *Engine) isLive(sessionID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.live[sessionID]
	return ok
}

// execute 注册活跃会话，从 from 节点开始遍历，并在结束时持久化。
func (e *Engine) execute(ctx context.Context, tr *trace.Trace, from string) (answer string, _ *trace.Trace, err error) {
	sessionID := tr.SessionID()

	e.mu.Lock()
	if _, busy := e.live[sessionID]; busy {
		e.mu.Unlock()
		return "", nil, fmt.Errorf("team %s: run %q: %w", e.name, sessionID, ErrSessionActive)
	}
	e.live[sessionID] = tr
	e.mu.Unlock()

	ctx = types.WithSessionID(types.WithTraceID(ctx, tr.ID()), sessionID)
	ctx, span := e.tracer.Start(ctx, "team.run",
		oteltrace.WithAttributes(
			attribute.String("team.name", e.name),
			attribute.String("team.protocol", e.protocol.Name()),
			attribute.String("session.id", sessionID),
			attribute.String("trace.id", tr.ID()),
		),
	)
	done := e.metrics.RunStarted(e.name)
	start := time.Now()

	log := e.logger.With(zap.String("session_id", sessionID), zap.String("trace_id", tr.ID()))
	log.Info("team run started", zap.String("from", from), zap.String("parent_id", tr.ParentID()))

	err = e.walk(ctx, tr, from)
	if err == nil && (tr.Cancelled() || ctx.Err() != nil) {
		err = types.NewError(types.ErrCancelled, fmt.Sprintf("team %s: run cancelled", e.name)).WithCause(ctx.Err())
	}
	tr.Terminate("")

	status := statusCompleted
	switch {
	case types.IsErrorCode(err, types.ErrCancelled):
		status = statusCancelled
	case err != nil:
		status = statusFailed
	}

	if perr := e.persist(context.WithoutCancel(ctx), tr); perr != nil {
		log.Error("failed to persist trace", zap.Error(perr))
		if err == nil {
			err = types.NewError(types.ErrStoreFailed, "team: persist trace").WithCause(perr)
			status = statusFailed
		}
	}

	e.mu.Lock()
	delete(e.live, sessionID)
	e.mu.Unlock()

	done(status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.String("team.status", status),
		attribute.Int("team.steps", tr.StepCount()),
		attribute.Int("team.iterations", tr.Iteration()),
	)
	span.End()

	if status == statusFailed {
		log.Warn("team run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return "", tr, err
	}
	answer = e.answer(tr)
	log.Info("team run finished",
		zap.String("status", status),
		zap.Int("steps", tr.StepCount()),
		zap.Int("iterations", tr.Iteration()),
		zap.Duration("duration", time.Since(start)),
	)
	return answer, tr, err
}

// walk 从 node 开始推进，直到到达 End 节点或出现致命错误。
func (e *Engine) walk(ctx context.Context, tr *trace.Trace, node string) error {
	terminal := e.graph.TerminalNode()
	dispatched := 0
	gateways := 0 // 连续经过的非 Activity 节点数，用于发现只由网关构成的环

	for {
		tr.SetCurrentNode(node)
		if e.graph.IsEnd(node) {
			return nil
		}

		n, ok := e.graph.Node(node)
		if !ok {
			return e.fail(ctx, tr, node, &workflow.GraphError{Node: node, Reason: "unknown node"})
		}

		if n.Kind == workflow.NodeActivity {
			gateways = 0
			if ctx.Err() != nil || tr.Cancelled() {
				tr.AppendStep(e.name, fmt.Sprintf("cancelled before dispatching %s", n.Name), trace.StepDiagnostic)
				tr.SetRoute(terminal)
				node = terminal
				continue
			}
			if dispatched >= e.maxSteps {
				tr.AppendStep(e.name, fmt.Sprintf("terminated: step limit %d reached", e.maxSteps), trace.StepDiagnostic)
				tr.SetRoute(terminal)
				e.metrics.RecordTermination("step_limit")
				node = terminal
				continue
			}

			e.checkpoint(ctx, tr)
			dispatched++
			halted, err := e.dispatch(ctx, tr, n)
			if err != nil {
				tr.SetCurrentNode(terminal)
				return err
			}
			if halted {
				node = terminal
				continue
			}
		} else if gateways++; gateways > len(e.graph.Nodes()) {
			return e.fail(ctx, tr, node, &workflow.GraphError{Node: node, Reason: "gateway cycle without activity"})
		}

		if tr.Route() == collaboration.RouteFinish {
			tr.SetRoute(terminal)
		}
		next, err := e.graph.ResolveNextNode(node, routedState{Trace: tr, routes: e.routeNodes})
		if err != nil {
			return e.fail(ctx, tr, node, err)
		}
		node = next
	}
}

// dispatch 调用 Activity 绑定的 Agent。halted 为 true 表示运行因取消而需直接转到终止节点。
func (e *Engine) dispatch(ctx context.Context, tr *trace.Trace, n workflow.Node) (halted bool, err error) {
	a, _ := e.registry.Get(n.Agent)

	ctx, span := e.tracer.Start(ctx, "team.dispatch",
		oteltrace.WithAttributes(
			attribute.String("team.node", n.Name),
			attribute.String("agent.name", a.Name()),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := a.Invoke(ctx, tr.Task(), tr)
	e.metrics.RecordAgentInvocation(a.Name(), metrics.Status(err), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		// 决策任务的致命错误已经写入了错误步骤并终止了 Trace
		if tr.Terminated() {
			return false, err
		}
		if ctx.Err() != nil {
			tr.AppendStep(e.name, fmt.Sprintf("cancelled while running %s: %v", n.Name, err), trace.StepDiagnostic)
			tr.SetRoute(e.graph.TerminalNode())
			return true, nil
		}

		msg := fmt.Sprintf("agent %s failed: %v", a.Name(), err)
		tr.AppendStep(a.Name(), msg, trace.StepError)
		tr.SetRoute(e.graph.TerminalNode())
		tr.Terminate(msg)
		e.logger.Error("agent failed",
			zap.String("session_id", tr.SessionID()),
			zap.String("node", n.Name),
			zap.Error(err),
		)
		return false, types.NewError(types.ErrAgentFailed, "agent "+a.Name()+" failed").WithNode(n.Name).WithCause(err)
	}

	if c, ok := a.(agent.Coordinator); ok && c.RecordsOwnSteps() {
		return false, nil
	}
	tr.AppendStep(a.Name(), out, trace.StepAgent)
	return false, nil
}

// fail 把图解析失败记录为错误步骤并终止 Trace。
func (e *Engine) fail(ctx context.Context, tr *trace.Trace, node string, cause error) error {
	terminal := e.graph.TerminalNode()
	detail := fmt.Sprintf("routing failed at %s: %v", node, cause)
	tr.AppendStep(e.name, detail, trace.StepError)
	tr.SetRoute(terminal)
	tr.SetCurrentNode(terminal)
	tr.Terminate(detail)

	e.logger.Error("routing failed",
		zap.String("session_id", tr.SessionID()),
		zap.String("node", node),
		zap.Error(cause),
	)
	return types.NewError(types.ErrGraphInvalid, "routing failed").WithNode(node).WithCause(cause)
}

// answer 优先返回终止标记给出的答案，其次是最后一个 Agent 的输出。
func (e *Engine) answer(tr *trace.Trace) string {
	if a, ok := tr.FinalAnswer(); ok {
		return a
	}
	return tr.LastOutput()
}

// finishedErr 还原已结束会话的错误状态。
func finishedErr(tr *trace.Trace) error {
	switch {
	case tr.Err() != "":
		return types.NewError(types.ErrAgentFailed, tr.Err())
	case tr.Cancelled():
		return types.NewError(types.ErrCancelled, "run was cancelled")
	}
	return nil
}

// =============================================================================
// 💾 持久化
// =============================================================================

func (e *Engine) persist(ctx context.Context, tr *trace.Trace) error {
	data, err := tr.Marshal()
	if err != nil {
		return err
	}
	return e.store.Put(ctx, tr.SessionID(), data)
}

// checkpoint 在派发前保存快照，失败只记录日志。
func (e *Engine) checkpoint(ctx context.Context, tr *trace.Trace) {
	if err := e.persist(context.WithoutCancel(ctx), tr); err != nil {
		e.logger.Warn("checkpoint failed",
			zap.String("session_id", tr.SessionID()),
			zap.String("node", tr.CurrentNode()),
			zap.Error(err),
		)
	}
}

func (e *Engine) load(ctx context.Context, sessionID string) (*trace.Trace, error) {
	data, err := e.store.Get(ctx, sessionID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("team %s: %q: %w", e.name, sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, types.NewError(types.ErrStoreFailed, "team: load trace").WithCause(err)
	}
	tr, err := trace.Unmarshal(data)
	if err != nil {
		return nil, types.NewError(types.ErrStoreFailed, "team: decode trace").WithCause(err)
	}
	return tr, nil
}

// =============================================================================
// 🤝 作为 Agent 嵌套
// =============================================================================

func (e *Engine) Name() string        { return e.name }
func (e *Engine) Description() string { return e.description }

// Invoke 以子 Trace 运行整个团队，子 Trace 通过 ParentID 关联调用方的 Trace。
// 调用方阻塞等待嵌套运行结束。
func (e *Engine) Invoke(ctx context.Context, task string, parent *trace.Trace) (string, error) {
	depth := types.TeamDepth(ctx)
	if depth >= e.maxDepth {
		return "", types.NewError(types.ErrNestingTooDeep,
			fmt.Sprintf("team %s: nesting depth %d exceeds limit %d", e.name, depth+1, e.maxDepth))
	}
	ctx = types.WithTeamDepth(ctx, depth+1)

	sessionID := e.name + "/" + uuid.NewString()
	parentID := ""
	if parent != nil {
		parentID = parent.ID()
		if parent.SessionID() != "" {
			sessionID = parent.SessionID() + "/" + sessionID
		}
	}

	answer, _, err := e.execute(ctx, e.newTrace(task, sessionID, parentID), e.graph.Start())
	return answer, err
}

// Estimate 汇总成员投标：最低成本、最高置信度，摘要列出成员。
// 不支持投标的成员被忽略。
func (e *Engine) Estimate(ctx context.Context, task string) (agent.Proposal, error) {
	p := agent.Proposal{Agent: e.name}
	var bids []string
	for _, name := range e.candidates {
		a, _ := e.registry.Get(name)
		bid, err := a.Estimate(ctx, task)
		if err != nil {
			if ctx.Err() != nil {
				return agent.Proposal{}, ctx.Err()
			}
			continue
		}
		bids = append(bids, name)
		if bid.Cost > 0 && (p.Cost == 0 || bid.Cost < p.Cost) {
			p.Cost = bid.Cost
		}
		p.Confidence = max(p.Confidence, bid.Confidence)
	}

	p.Summary = fmt.Sprintf("team of %d (%s) coordinated by %s",
		len(e.candidates), strings.Join(e.candidates, ", "), e.protocol.Name())
	if len(bids) > 0 {
		p.Summary += fmt.Sprintf("; bids from %s", strings.Join(bids, ", "))
	}
	return p, nil
}

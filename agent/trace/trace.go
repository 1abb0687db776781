package trace

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StepKind 区分步骤日志中的条目来源。
type StepKind string

const (
	StepAgent      StepKind = "agent"      // Worker Agent 的输出
	StepDecision   StepKind = "decision"   // 决策任务提交的路由
	StepDiagnostic StepKind = "diagnostic" // 终止原因、无法解析的决策等
	StepError      StepKind = "error"      // 以观察结果形式记录的错误
)

// Step 是步骤日志中的一条记录，追加后不再修改。
type Step struct {
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Kind      StepKind  `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Scratch 是协议私有的记账空间，按类型分开存放。
type Scratch struct {
	Counters map[string]map[string]int `json:"counters,omitempty"`
	Values   map[string]string         `json:"values,omitempty"`
	Lists    map[string][]string       `json:"lists,omitempty"`
}

func newScratch() Scratch {
	return Scratch{
		Counters: make(map[string]map[string]int),
		Values:   make(map[string]string),
		Lists:    make(map[string][]string),
	}
}

func (s Scratch) clone() Scratch {
	c := newScratch()
	for ns, m := range s.Counters {
		cm := make(map[string]int, len(m))
		for k, v := range m {
			cm[k] = v
		}
		c.Counters[ns] = cm
	}
	for k, v := range s.Values {
		c.Values[k] = v
	}
	for k, v := range s.Lists {
		c.Lists[k] = append([]string(nil), v...)
	}
	return c
}

// Trace 是一次任务调用的可变执行状态。
//
// 一次调用只有一个 goroutine 推进 Trace；读锁保证 GetTrace 等内省操作
// 与 Cancel 可以从其他 goroutine 安全调用。
type Trace struct {
	mu sync.RWMutex

	id        string
	sessionID string
	parentID  string
	task      string

	route         string
	currentNode   string
	iteration     int
	maxIterations int

	steps        []Step
	finalAnswer  string
	hasFinal     bool
	lastDecision string
	scratch      Scratch
	routeHistory []string
	agents       []string

	cancelled  bool
	terminated bool
	errText    string

	createdAt time.Time
	updatedAt time.Time
}

// Option 配置新建的 Trace。
type Option func(*Trace)

// WithID 指定 Trace ID，默认生成 UUID。
func WithID(id string) Option {
	return func(t *Trace) {
		if id != "" {
			t.id = id
		}
	}
}

// WithSessionID 绑定会话 ID，持久化以它为键。
func WithSessionID(id string) Option {
	return func(t *Trace) { t.sessionID = id }
}

// WithParent 把 Trace 标记为嵌套 Team 调用的子 Trace。
func WithParent(parentID string) Option {
	return func(t *Trace) { t.parentID = parentID }
}

// WithAgents 设置协议可见的候选 Agent 名称。
func WithAgents(names []string) Option {
	return func(t *Trace) { t.agents = append([]string(nil), names...) }
}

// New 创建 Trace。maxIterations <= 0 时取 10。
func New(task string, maxIterations int, opts ...Option) *Trace {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	now := time.Now()
	t := &Trace{
		id:            uuid.New().String(),
		task:          task,
		maxIterations: maxIterations,
		scratch:       newScratch(),
		createdAt:     now,
		updatedAt:     now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trace) touch() { t.updatedAt = time.Now() }

// ----------------------------------------------------------------------------
// 标识
// ----------------------------------------------------------------------------

func (t *Trace) ID() string        { return t.id }
func (t *Trace) SessionID() string { return t.sessionID }
func (t *Trace) ParentID() string  { return t.parentID }
func (t *Trace) Task() string      { return t.task }

func (t *Trace) CreatedAt() time.Time { return t.createdAt }

func (t *Trace) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// ----------------------------------------------------------------------------
// 路由与迭代
// ----------------------------------------------------------------------------

// Route 返回下一个要访问的节点名。
func (t *Trace) Route() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.route
}

// SetRoute 写入路由。只有决策任务与终止转移会调用它。
func (t *Trace) SetRoute(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.route = route
	t.touch()
}

// CommitRoute 写入路由并记录到路由历史（用于循环检测）。
func (t *Trace) CommitRoute(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.route = route
	t.routeHistory = append(t.routeHistory, route)
	t.touch()
}

// RouteHistory 返回历次决策提交的路由副本。
func (t *Trace) RouteHistory() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.routeHistory...)
}

// CurrentNode 返回图执行器当前所在节点，用于恢复执行。
func (t *Trace) CurrentNode() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentNode
}

func (t *Trace) SetCurrentNode(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentNode = name
	t.touch()
}

func (t *Trace) Iteration() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.iteration
}

// IncrementIteration 每个决策周期调用一次，返回新值。
func (t *Trace) IncrementIteration() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.iteration++
	t.touch()
	return t.iteration
}

func (t *Trace) MaxIterations() int { return t.maxIterations }

// Agents 返回候选 Agent 名称（注册顺序）。
func (t *Trace) Agents() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.agents...)
}

// ----------------------------------------------------------------------------
// 步骤日志
// ----------------------------------------------------------------------------

// AppendStep 追加一条步骤并返回它。
func (t *Trace) AppendStep(source, content string, kind StepKind) Step {
	s := Step{Source: source, Content: content, Kind: kind, Timestamp: time.Now()}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, s)
	t.touch()
	return s
}

// Steps 返回步骤日志副本。
func (t *Trace) Steps() []Step {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Step(nil), t.steps...)
}

// RecentSteps 返回最近 n 条步骤；n <= 0 返回全部。
func (t *Trace) RecentSteps(n int) []Step {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n <= 0 || n >= len(t.steps) {
		return append([]Step(nil), t.steps...)
	}
	return append([]Step(nil), t.steps[len(t.steps)-n:]...)
}

func (t *Trace) StepCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.steps)
}

// LastStep 返回最后一条步骤。
func (t *Trace) LastStep() (Step, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.steps) == 0 {
		return Step{}, false
	}
	return t.steps[len(t.steps)-1], true
}

// LastAgentStep 返回最后一条 Worker 输出。
func (t *Trace) LastAgentStep() (Step, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.steps) - 1; i >= 0; i-- {
		if t.steps[i].Kind == StepAgent {
			return t.steps[i], true
		}
	}
	return Step{}, false
}

// LastOutput 返回最后一条 Worker 输出的内容，没有时为空串。
func (t *Trace) LastOutput() string {
	s, _ := t.LastAgentStep()
	return s.Content
}

// StepsContain 报告是否有步骤内容包含 marker，foldCase 为 true 时不区分大小写。
func (t *Trace) StepsContain(marker string, foldCase bool) bool {
	if marker == "" {
		return false
	}
	needle := marker
	if foldCase {
		needle = strings.ToLower(marker)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.steps {
		content := s.Content
		if foldCase {
			content = strings.ToLower(content)
		}
		if strings.Contains(content, needle) {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------------
// 决策结果
// ----------------------------------------------------------------------------

// FinalAnswer 返回最终答案以及是否已设置。
func (t *Trace) FinalAnswer() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finalAnswer, t.hasFinal
}

// SetFinalAnswer 只在第一次调用时生效，返回是否写入。
func (t *Trace) SetFinalAnswer(answer string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasFinal {
		return false
	}
	t.finalAnswer = answer
	t.hasFinal = true
	t.touch()
	return true
}

func (t *Trace) LastDecision() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastDecision
}

func (t *Trace) SetLastDecision(raw string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastDecision = raw
	t.touch()
}

// ----------------------------------------------------------------------------
// Scratch
// ----------------------------------------------------------------------------

// Counter 返回 ns 命名空间下 key 的计数。
func (t *Trace) Counter(ns, key string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scratch.Counters[ns][key]
}

// IncrCounter 把计数加一并返回新值。
func (t *Trace) IncrCounter(ns, key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.scratch.Counters[ns]
	if !ok {
		m = make(map[string]int)
		t.scratch.Counters[ns] = m
	}
	m[key]++
	t.touch()
	return m[key]
}

// Counters 返回 ns 命名空间的计数副本。
func (t *Trace) Counters(ns string) map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int, len(t.scratch.Counters[ns]))
	for k, v := range t.scratch.Counters[ns] {
		out[k] = v
	}
	return out
}

func (t *Trace) ScratchValue(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.scratch.Values[key]
	return v, ok
}

func (t *Trace) SetScratchValue(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scratch.Values[key] = value
	t.touch()
}

// AppendScratchList 向列表追加元素。
func (t *Trace) AppendScratchList(key string, values ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scratch.Lists[key] = append(t.scratch.Lists[key], values...)
	t.touch()
}

func (t *Trace) ScratchList(key string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.scratch.Lists[key]...)
}

// ----------------------------------------------------------------------------
// 取消与终止
// ----------------------------------------------------------------------------

// Cancel 设置协作式取消标记，在下一个决策周期或 Activity 派发前生效。
func (t *Trace) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	t.touch()
}

func (t *Trace) Cancelled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cancelled
}

// Terminate 标记 Trace 已结束。reason 非空表示异常结束。
func (t *Trace) Terminate(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.terminated = true
	if reason != "" && t.errText == "" {
		t.errText = reason
	}
	t.touch()
}

func (t *Trace) Terminated() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.terminated
}

// Err 返回导致异常终止的原因，正常结束时为空串。
func (t *Trace) Err() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errText
}

// ----------------------------------------------------------------------------
// workflow.State
// ----------------------------------------------------------------------------

// Value 按名称读取命名值，供排他网关 guard 使用。
//
// 支持 route、iteration、max_iterations、final_answer、last_decision、task、
// last_source、last_output、terminated、current_node 以及 scratch.<key>。
func (t *Trace) Value(key string) (any, bool) {
	if k, ok := strings.CutPrefix(key, "scratch."); ok {
		t.mu.RLock()
		defer t.mu.RUnlock()
		if v, ok := t.scratch.Values[k]; ok {
			return v, true
		}
		if l, ok := t.scratch.Lists[k]; ok {
			return append([]string(nil), l...), true
		}
		return nil, false
	}

	switch key {
	case "last_source", "last_output":
		s, ok := t.LastAgentStep()
		if !ok {
			return "", true
		}
		if key == "last_source" {
			return s.Source, true
		}
		return s.Content, true
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	switch key {
	case "route":
		return t.route, true
	case "iteration":
		return t.iteration, true
	case "max_iterations":
		return t.maxIterations, true
	case "final_answer":
		return t.finalAnswer, true
	case "last_decision":
		return t.lastDecision, true
	case "task":
		return t.task, true
	case "terminated":
		return t.terminated, true
	case "current_node":
		return t.currentNode, true
	}
	return nil, false
}

// FormatSteps 把步骤渲染为提示词中的历史片段，每条一行：[source] content。
func FormatSteps(steps []Step) string {
	var sb strings.Builder
	for i, s := range steps {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte('[')
		sb.WriteString(s.Source)
		if s.Kind != StepAgent && s.Kind != "" {
			sb.WriteByte('/')
			sb.WriteString(string(s.Kind))
		}
		sb.WriteString("] ")
		sb.WriteString(s.Content)
	}
	return sb.String()
}

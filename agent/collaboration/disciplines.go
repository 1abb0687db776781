package collaboration

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentteam/agent/trace"
)

// ============================================================================
// Sequential
// ============================================================================

// Sequential 按固定顺序交接，不调用模型。顺序走完后路由到终止节点。
type Sequential struct {
	Base
	order []string
}

func NewSequential(order []string) *Sequential {
	return &Sequential{Base: NewBase(string(PatternSequential)), order: append([]string(nil), order...)}
}

// Direct 第 n 个决策周期选择顺序中的第 n 个 Agent。
func (s *Sequential) Direct(tr *trace.Trace) (string, bool) {
	order := s.order
	if len(order) == 0 {
		order = tr.Agents()
	}
	i := tr.Iteration()
	if i >= len(order) {
		return RouteFinish, true
	}
	return order[i], true
}

// ============================================================================
// Hierarchical
// ============================================================================

// Hierarchical 决策者是拥有完全权限的主管，其余 Agent 都是普通 Activity。
type Hierarchical struct {
	Base
	supervisor string
}

func NewHierarchical(supervisor string) *Hierarchical {
	return &Hierarchical{Base: NewBase(string(PatternHierarchical)), supervisor: supervisor}
}

func (h *Hierarchical) PrepareInstruction(*trace.Trace) string {
	who := "the lead supervisor"
	if h.supervisor != "" {
		who = fmt.Sprintf("%s, the lead supervisor", h.supervisor)
	}
	return fmt.Sprintf("You are %s with full authority over this team. "+
		"Team members cannot refuse your assignments. Delegate each step to exactly one member, "+
		"review their work, and decide when the task is complete.", who)
}

// ============================================================================
// Blackboard
// ============================================================================

// Blackboard 每次决策都看到完整的步骤历史（共享黑板）。
type Blackboard struct{ Base }

func NewBlackboard() *Blackboard { return &Blackboard{Base: NewBase(string(PatternBlackboard))} }

// HistoryWindow 返回 0，决策提示词包含全部历史。
func (*Blackboard) HistoryWindow() int { return 0 }

func (*Blackboard) PrepareInstruction(*trace.Trace) string {
	return "The team shares a blackboard: every contribution so far is shown below. " +
		"Pick the agent whose expertise best advances the blackboard toward a solution."
}

func (*Blackboard) PrepareContext(tr *trace.Trace) string {
	contributors := make(map[string]bool)
	for _, s := range tr.Steps() {
		if s.Kind == trace.StepAgent {
			contributors[s.Source] = true
		}
	}
	var idle []string
	for _, name := range tr.Agents() {
		if !contributors[name] {
			idle = append(idle, name)
		}
	}
	if len(idle) == 0 {
		return "Blackboard: every agent has contributed."
	}
	return "Blackboard: agents that have not contributed yet: " + strings.Join(idle, ", ") + "."
}

// ============================================================================
// Swarm
// ============================================================================

// SwarmCounterNS 是 Swarm 在 Trace scratch 中的计数命名空间。
const SwarmCounterNS = "swarm.invocations"

// Swarm 对等协作：每次决策附带各 Agent 的被选次数，OnRouted 递增计数。
type Swarm struct{ Base }

func NewSwarm() *Swarm { return &Swarm{Base: NewBase(string(PatternSwarm))} }

func (*Swarm) PrepareInstruction(*trace.Trace) string {
	return "Agents form a peer swarm. Spread the work: prefer agents that have been used less, " +
		"unless one is clearly the only fit."
}

func (*Swarm) PrepareContext(tr *trace.Trace) string {
	counts := tr.Counters(SwarmCounterNS)
	var sb strings.Builder
	sb.WriteString("Agent usage counts:")
	for _, name := range tr.Agents() {
		fmt.Fprintf(&sb, "\n- %s: %d", name, counts[name])
	}
	return sb.String()
}

func (*Swarm) OnRouted(tr *trace.Trace, target string) {
	if target == RouteFinish || !contains(tr.Agents(), target) {
		return
	}
	tr.IncrCounter(SwarmCounterNS, target)
}

// ============================================================================
// MarketBased
// ============================================================================

// MarketBased 把选择描述为成本/效率的权衡，没有额外状态。
type MarketBased struct{ Base }

func NewMarketBased() *MarketBased { return &MarketBased{Base: NewBase(string(PatternMarketBased))} }

func (*MarketBased) PrepareInstruction(*trace.Trace) string {
	return "Treat the agents as a market of service providers. Each call has a cost. " +
		"Choose the agent that offers the best cost/efficiency trade-off for the next step, " +
		"and finish as soon as the result is good enough."
}

// ============================================================================
// None
// ============================================================================

// None 决策步骤从不执行，只有图的显式边决定流程。
type None struct{ Base }

func NewNone() *None { return &None{Base: NewBase(string(PatternNone))} }

func (*None) ShouldRun(*trace.Trace) bool { return false }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// 📦 测试数据工厂 - Agent 与图
// =============================================================================
// 提供预定义的 Agent 与工作流图，用于团队编排测试
// =============================================================================
package fixtures

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/agentteam/agent"
	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/workflow"
)

// =============================================================================
// 🤖 Agent 工厂
// =============================================================================

// RecordingAgent 记录每次调用的任务，并返回固定格式的输出。
type RecordingAgent struct {
	*agent.FuncAgent

	mu    sync.Mutex
	tasks []string
}

// NewRecordingAgent 创建输出 "<name>: <output>" 的 Agent。
func NewRecordingAgent(name, output string) *RecordingAgent {
	r := &RecordingAgent{}
	r.FuncAgent = agent.NewFuncAgent(name, name+" agent", func(_ context.Context, task string, _ *trace.Trace) (string, error) {
		r.mu.Lock()
		r.tasks = append(r.tasks, task)
		r.mu.Unlock()
		return fmt.Sprintf("%s: %s", name, output), nil
	})
	return r
}

// Tasks 返回收到的任务副本。
func (r *RecordingAgent) Tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tasks...)
}

// Calls 返回调用次数。
func (r *RecordingAgent) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// BiddingAgent 返回带固定投标的 FuncAgent。
func BiddingAgent(name, bid string, cost float64) *agent.FuncAgent {
	return agent.NewFuncAgent(name, name+" agent", func(_ context.Context, task string, _ *trace.Trace) (string, error) {
		return name + " handled " + task, nil
	}).WithEstimate(func(context.Context, string) (agent.Proposal, error) {
		return agent.Proposal{Agent: name, Summary: bid, Cost: cost, Confidence: 0.5}, nil
	})
}

// FailingAgent 总是返回给定错误。
func FailingAgent(name string, err error) *agent.FuncAgent {
	return agent.NewFuncAgent(name, name+" agent", func(context.Context, string, *trace.Trace) (string, error) {
		return "", err
	})
}

// =============================================================================
// 🗺️ 图工厂
// =============================================================================

// LinearGraph 构建 start → agents... → end。
func LinearGraph(agents ...string) *workflow.Graph {
	b := workflow.NewGraphBuilder().AddStart("start")
	for _, name := range agents {
		b.Link(name).AddActivity(name)
	}
	g, err := b.Link("end").AddEnd("end").Build()
	if err != nil {
		panic(err)
	}
	return g
}

// HubGraph 构建以决策节点为中心的星形图：
// start → decider → (动态路由) → worker → decider ... → end。
func HubGraph(decider string, workers ...string) *workflow.Graph {
	b := workflow.NewGraphBuilder().
		AddStart("start").Link(decider).
		AddActivity(decider)
	for _, w := range workers {
		b.AddActivity(w).Link(decider)
	}
	g, err := b.AddEnd("end").Build()
	if err != nil {
		panic(err)
	}
	return g
}

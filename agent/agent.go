package agent

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentteam/agent/trace"
)

// Agent 是团队中的一个命名工作单元：叶子 Worker，或者整个嵌套 Team。
type Agent interface {
	// Name 在注册表中唯一
	Name() string

	// Description 出现在决策提示词中，帮助模型选择
	Description() string

	// Invoke 执行任务。tr 是调用方的 Trace，只读使用；
	// 嵌套 Team 为自己创建子 Trace
	Invoke(ctx context.Context, task string, tr *trace.Trace) (string, error)

	// Estimate 返回投标，仅 ContractNet 的招标阶段使用
	Estimate(ctx context.Context, task string) (Proposal, error)
}

// Proposal 是 Agent 对任务的投标。
type Proposal struct {
	Agent      string  `json:"agent"`
	Summary    string  `json:"summary"`
	Cost       float64 `json:"cost,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// String 渲染为提示词中的一行。
func (p Proposal) String() string {
	line := fmt.Sprintf("%s: %s", p.Agent, p.Summary)
	if p.Cost > 0 || p.Confidence > 0 {
		line += fmt.Sprintf(" (cost=%.2f, confidence=%.2f)", p.Cost, p.Confidence)
	}
	return line
}

// Coordinator 由参与编排本身的 Agent 实现（决策任务、招标节点），
// 它们不会出现在路由候选中。RecordsOwnSteps 为 true 时引擎不为其输出追加步骤。
type Coordinator interface {
	Agent
	RecordsOwnSteps() bool
}

package mediator

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/collaboration"
	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/llm/tokenizer"
)

// DefaultBasePrompt 是决策任务的基础 system prompt。
const DefaultBasePrompt = `You coordinate a team of agents working on a single task.
After each contribution you decide which agent acts next, or end the work when the task is complete.
Answer with exactly one agent name, or with the finish marker followed by the final answer.`

func (m *Mediator) systemPrompt(tr *trace.Trace) string {
	var sb strings.Builder
	sb.WriteString(m.cfg.BasePrompt)
	if instr := strings.TrimSpace(m.protocol.PrepareInstruction(tr)); instr != "" {
		sb.WriteString("\n\n")
		sb.WriteString(instr)
	}

	candidates := tr.Agents()
	if len(candidates) > 0 {
		sb.WriteString("\n\nTeam members:")
		for _, name := range candidates {
			if desc := m.descriptions[name]; desc != "" {
				fmt.Fprintf(&sb, "\n- %s: %s", name, desc)
			} else {
				fmt.Fprintf(&sb, "\n- %s", name)
			}
		}
	}
	return sb.String()
}

func (m *Mediator) userPrompt(tr *trace.Trace) string {
	var sb strings.Builder
	if pc := strings.TrimSpace(m.protocol.PrepareContext(tr)); pc != "" {
		sb.WriteString(pc)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "Task:\n%s\n\n", tr.Task())

	sb.WriteString("History:\n")
	if history := m.history(tr); history != "" {
		sb.WriteString(history)
	} else {
		sb.WriteString("(no steps yet)")
	}

	fmt.Fprintf(&sb, "\n\nIteration: %d of %d\n", tr.Iteration()+1, tr.MaxIterations())
	fmt.Fprintf(&sb, "Reply with the name of the next agent (%s), or reply %s followed by the final answer if the task is complete.",
		strings.Join(tr.Agents(), ", "), m.cfg.FinishMarker)
	return sb.String()
}

// history 返回窗口内的步骤；协议的 HistoryPolicy 优先于配置，
// 配置了 token 预算时再按预算从最新的步骤向前截断。
func (m *Mediator) history(tr *trace.Trace) string {
	window := m.cfg.HistoryWindow
	if hp, ok := m.protocol.(collaboration.HistoryPolicy); ok {
		window = hp.HistoryWindow()
	}
	steps := tr.RecentSteps(window)
	if len(steps) == 0 {
		return ""
	}
	if m.cfg.HistoryTokenBudget <= 0 {
		return trace.FormatSteps(steps)
	}

	msgs := make([]tokenizer.Message, len(steps))
	for i, s := range steps {
		msgs[i] = tokenizer.Message{Role: s.Source, Content: s.Content}
	}
	kept, err := tokenizer.FitMessages(m.tokenizer, msgs, m.cfg.HistoryTokenBudget)
	if err != nil {
		m.logger.Debug("history token budgeting failed, using window",
			zap.String("tokenizer", m.tokenizer.Name()), zap.Error(err))
		return trace.FormatSteps(steps)
	}
	return trace.FormatSteps(steps[len(steps)-len(kept):])
}

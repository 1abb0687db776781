package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/llm/retry"
)

// LLMConfig 配置一个由单次模型调用驱动的叶子 Worker。
type LLMConfig struct {
	Name          string `yaml:"name" json:"name"`
	Description   string `yaml:"description" json:"description"`
	SystemPrompt  string `yaml:"system_prompt" json:"system_prompt"`
	Model         string `yaml:"model,omitempty" json:"model,omitempty"`
	HistoryWindow int    `yaml:"history_window,omitempty" json:"history_window,omitempty"` // 0 表示不带历史
	// Bid 为 true 时 Estimate 会询问模型，否则直接用描述投标
	Bid bool `yaml:"bid,omitempty" json:"bid,omitempty"`
}

// LLMAgent 把 system prompt、任务与最近的 Trace 步骤拼成一次补全请求。
// 完整的单 Agent 推理循环（工具选择、上下文压缩）不在这里实现。
type LLMAgent struct {
	cfg      LLMConfig
	provider llm.Provider
	retryer  retry.Retryer
	logger   *zap.Logger
}

// NewLLMAgent 创建 LLMAgent。retryer 为空时不重试。
func NewLLMAgent(cfg LLMConfig, provider llm.Provider, retryer retry.Retryer, logger *zap.Logger) (*LLMAgent, error) {
	if provider == nil {
		return nil, ErrProviderNotSet
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("llm agent: empty name")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryer == nil {
		retryer = retry.NewBackoffRetryer(&retry.RetryPolicy{MaxAttempts: 1}, logger)
	}
	return &LLMAgent{
		cfg:      cfg,
		provider: provider,
		retryer:  retryer,
		logger:   logger.With(zap.String("agent", cfg.Name)),
	}, nil
}

func (a *LLMAgent) Name() string        { return a.cfg.Name }
func (a *LLMAgent) Description() string { return a.cfg.Description }

func (a *LLMAgent) Invoke(ctx context.Context, task string, tr *trace.Trace) (string, error) {
	var sb strings.Builder
	sb.WriteString("Task:\n")
	sb.WriteString(task)
	if a.cfg.HistoryWindow > 0 && tr != nil {
		if steps := tr.RecentSteps(a.cfg.HistoryWindow); len(steps) > 0 {
			sb.WriteString("\n\nRecent team activity:\n")
			sb.WriteString(trace.FormatSteps(steps))
		}
	}

	opts := []llm.CompleteOption{llm.WithModel(a.cfg.Model)}
	if tr != nil {
		opts = append(opts, llm.WithTraceID(tr.ID()))
	}

	out, err := retry.DoWithResultTyped[string](a.retryer, ctx, func() (string, error) {
		return llm.Complete(ctx, a.provider, a.cfg.SystemPrompt, sb.String(), nil, opts...)
	})
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.cfg.Name, err)
	}
	return strings.TrimSpace(out), nil
}

var (
	costPattern       = regexp.MustCompile(`(?i)cost\s*[:=]\s*([0-9]*\.?[0-9]+)`)
	confidencePattern = regexp.MustCompile(`(?i)confidence\s*[:=]\s*([0-9]*\.?[0-9]+)`)
)

// Estimate 让模型给出一行投标；模型调用失败或未开启 Bid 时回退到描述。
func (a *LLMAgent) Estimate(ctx context.Context, task string) (Proposal, error) {
	fallback := Proposal{Agent: a.cfg.Name, Summary: a.cfg.Description}
	if !a.cfg.Bid {
		return fallback, nil
	}

	prompt := "You are bidding for the task below. Reply with ONE line: your approach, " +
		"then cost=<0..1> confidence=<0..1>.\n\nTask:\n" + task
	out, err := llm.Complete(ctx, a.provider, a.cfg.SystemPrompt, prompt, nil, llm.WithModel(a.cfg.Model))
	if err != nil {
		a.logger.Warn("estimate failed, bidding with description", zap.Error(err))
		return fallback, nil
	}

	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return fallback, nil
	}

	p := Proposal{Agent: a.cfg.Name, Summary: line}
	if m := costPattern.FindStringSubmatch(line); m != nil {
		p.Cost, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := confidencePattern.FindStringSubmatch(line); m != nil {
		p.Confidence, _ = strconv.ParseFloat(m[1], 64)
	}
	return p, nil
}

package agent

import (
	"context"

	"github.com/BaSui01/agentteam/agent/trace"
)

// InvokeFunc 是 FuncAgent 的执行函数。
type InvokeFunc func(ctx context.Context, task string, tr *trace.Trace) (string, error)

// EstimateFunc 是 FuncAgent 的投标函数。
type EstimateFunc func(ctx context.Context, task string) (Proposal, error)

// FuncAgent 把普通函数适配为 Agent，用于胶水代码与测试。
type FuncAgent struct {
	name        string
	description string
	invoke      InvokeFunc
	estimate    EstimateFunc
}

// NewFuncAgent 创建 FuncAgent。
func NewFuncAgent(name, description string, fn InvokeFunc) *FuncAgent {
	return &FuncAgent{name: name, description: description, invoke: fn}
}

// WithEstimate 设置投标函数；未设置时以描述作为投标摘要。
func (a *FuncAgent) WithEstimate(fn EstimateFunc) *FuncAgent {
	a.estimate = fn
	return a
}

func (a *FuncAgent) Name() string        { return a.name }
func (a *FuncAgent) Description() string { return a.description }

func (a *FuncAgent) Invoke(ctx context.Context, task string, tr *trace.Trace) (string, error) {
	if a.invoke == nil {
		return "", nil
	}
	return a.invoke(ctx, task, tr)
}

func (a *FuncAgent) Estimate(ctx context.Context, task string) (Proposal, error) {
	if a.estimate == nil {
		return Proposal{Agent: a.name, Summary: a.description}, nil
	}
	p, err := a.estimate(ctx, task)
	if err != nil {
		return Proposal{}, err
	}
	if p.Agent == "" {
		p.Agent = a.name
	}
	return p, nil
}

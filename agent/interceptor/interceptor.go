package interceptor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/types"
)

// Interceptor 在决策周期的三个位置被调用。
//
// BeforeDecision 返回 false 表示否决本次决策，决策任务把路由设为终止节点；
// AfterModelCall 与 AfterDecision 只做观察，返回的错误对本次调用是致命的。
type Interceptor interface {
	Name() string
	BeforeDecision(ctx context.Context, tr *trace.Trace) (bool, error)
	AfterModelCall(ctx context.Context, tr *trace.Trace, raw string) error
	AfterDecision(ctx context.Context, tr *trace.Trace, route string) error
}

// Base 提供空实现，内置拦截器嵌入它只覆盖需要的钩子。
type Base struct{}

func (Base) BeforeDecision(context.Context, *trace.Trace) (bool, error) { return true, nil }
func (Base) AfterModelCall(context.Context, *trace.Trace, string) error { return nil }
func (Base) AfterDecision(context.Context, *trace.Trace, string) error  { return nil }

// Chain 按注册顺序执行拦截器，构建后不可修改。
type Chain struct {
	items  []Interceptor
	logger *zap.Logger
}

// NewChain 创建拦截器链，nil 项会被跳过。
func NewChain(logger *zap.Logger, items ...Interceptor) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chain{logger: logger.With(zap.String("component", "interceptor_chain"))}
	for _, it := range items {
		if it != nil {
			c.items = append(c.items, it)
		}
	}
	return c
}

// Len 返回拦截器数量；nil Chain 视为空链。
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Names 返回拦截器名称（注册顺序）。
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.items))
	for i, it := range c.items {
		names[i] = it.Name()
	}
	return names
}

// BeforeDecision 依次执行前置闸门。第一个否决的拦截器短路剩余链，
// 返回 continue=false 以及它的名字。
func (c *Chain) BeforeDecision(ctx context.Context, tr *trace.Trace) (cont bool, vetoedBy string, err error) {
	if c == nil {
		return true, "", nil
	}
	for _, it := range c.items {
		ok, err := it.BeforeDecision(ctx, tr)
		if err != nil {
			return false, it.Name(), hookError(it, "before_decision", err)
		}
		if !ok {
			c.logger.Info("decision vetoed",
				zap.String("interceptor", it.Name()),
				zap.String("trace_id", tr.ID()),
			)
			return false, it.Name(), nil
		}
	}
	return true, "", nil
}

// AfterModelCall 把原始模型输出交给每个拦截器观察。
func (c *Chain) AfterModelCall(ctx context.Context, tr *trace.Trace, raw string) error {
	if c == nil {
		return nil
	}
	for _, it := range c.items {
		if err := it.AfterModelCall(ctx, tr, raw); err != nil {
			return hookError(it, "after_model_call", err)
		}
	}
	return nil
}

// AfterDecision 通知每个拦截器已提交的路由。
func (c *Chain) AfterDecision(ctx context.Context, tr *trace.Trace, route string) error {
	if c == nil {
		return nil
	}
	for _, it := range c.items {
		if err := it.AfterDecision(ctx, tr, route); err != nil {
			return hookError(it, "after_decision", err)
		}
	}
	return nil
}

func hookError(it Interceptor, hook string, err error) error {
	return types.NewError(types.ErrInterceptorFailed,
		fmt.Sprintf("interceptor %s failed in %s", it.Name(), hook)).WithCause(err)
}

package hitl

import (
	"context"
	"errors"
	"time"
)

// ApprovalRequest 描述一次待审批的路由决策。
type ApprovalRequest struct {
	SessionID string
	Node      string
	Route     string
	Decision  string
	Iteration int
}

// Approver 审批路由决策。拦截器只依赖这个接口，不依赖具体的交互界面。
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (bool, error)
}

// ApproverFunc 把函数适配为 Approver。
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// AutoApprove 无人值守运行时批准所有决策。
func AutoApprove() Approver {
	return ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) { return true, nil })
}

// AutoDeny 拒绝所有决策。
func AutoDeny() Approver {
	return ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) { return false, nil })
}

// ManagerApprover 通过 InterruptManager 等待人工审批。
type ManagerApprover struct {
	manager *InterruptManager
	timeout time.Duration
	// DenyOnTimeout 为 true 时超时视为拒绝，否则返回错误
	DenyOnTimeout bool
}

// NewManagerApprover 创建基于中断的审批器，timeout <= 0 使用 DefaultInterruptTimeout。
func NewManagerApprover(manager *InterruptManager, timeout time.Duration) *ManagerApprover {
	return &ManagerApprover{manager: manager, timeout: timeout, DenyOnTimeout: true}
}

func (a *ManagerApprover) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	resp, err := a.manager.CreateInterrupt(ctx, InterruptOptions{
		SessionID:   req.SessionID,
		Node:        req.Node,
		Type:        InterruptTypeApproval,
		Title:       "Approve routing to " + req.Route,
		Description: req.Decision,
		Route:       req.Route,
		Timeout:     a.timeout,
		Metadata:    map[string]any{"iteration": req.Iteration},
	})
	if err != nil {
		if a.DenyOnTimeout && errors.Is(err, ErrInterruptTimeout) {
			return false, nil
		}
		return false, err
	}
	return resp.Approved, nil
}

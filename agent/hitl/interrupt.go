package hitl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInterruptNotFound 中断不存在或已经处理
	ErrInterruptNotFound = errors.New("interrupt not found")

	// ErrInterruptTimeout 等待人工响应超时
	ErrInterruptTimeout = errors.New("interrupt timeout")

	// ErrInterruptCanceled 中断被取消
	ErrInterruptCanceled = errors.New("interrupt canceled")
)

// DefaultInterruptTimeout 未指定超时时的等待上限。
const DefaultInterruptTimeout = 30 * time.Minute

// InterruptType 中断类型
type InterruptType string

const (
	InterruptTypeApproval InterruptType = "approval" // 路由审批
	InterruptTypeInput    InterruptType = "input"    // 补充输入
	InterruptTypeReview   InterruptType = "review"   // 结果复核
)

// InterruptStatus 中断状态
type InterruptStatus string

const (
	InterruptStatusPending  InterruptStatus = "pending"
	InterruptStatusResolved InterruptStatus = "resolved"
	InterruptStatusRejected InterruptStatus = "rejected"
	InterruptStatusTimeout  InterruptStatus = "timeout"
	InterruptStatusCanceled InterruptStatus = "canceled"
)

// Interrupt 是一次等待人工处理的暂停点，按会话与决策节点定位。
type Interrupt struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Node        string          `json:"node,omitempty"`
	Type        InterruptType   `json:"type"`
	Status      InterruptStatus `json:"status"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Route       string          `json:"route,omitempty"`
	Response    *Response       `json:"response,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	Timeout     time.Duration   `json:"timeout"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// Response 人工对中断的响应。
type Response struct {
	Approved  bool      `json:"approved"`
	Comment   string    `json:"comment,omitempty"`
	Input     string    `json:"input,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InterruptStore 中断的存储接口。
type InterruptStore interface {
	Save(ctx context.Context, interrupt *Interrupt) error
	Load(ctx context.Context, interruptID string) (*Interrupt, error)
	List(ctx context.Context, sessionID string, status InterruptStatus) ([]*Interrupt, error)
	Update(ctx context.Context, interrupt *Interrupt) error
}

// InterruptHandler 在中断创建时被异步通知（例如推送到审批界面）。
type InterruptHandler func(ctx context.Context, interrupt *Interrupt) error

// InterruptOptions 配置中断创建。
type InterruptOptions struct {
	SessionID   string
	Node        string
	Type        InterruptType
	Title       string
	Description string
	Route       string
	Timeout     time.Duration
	Metadata    map[string]any
}

// InterruptManager 管理待处理的中断：CreateInterrupt 阻塞直到
// ResolveInterrupt、CancelInterrupt 或超时。
type InterruptManager struct {
	store    InterruptStore
	logger   *zap.Logger
	handlers map[InterruptType][]InterruptHandler
	pending  map[string]*pendingInterrupt
	mu       sync.RWMutex
}

type pendingInterrupt struct {
	interrupt  *Interrupt
	responseCh chan *Response
}

// NewInterruptManager 创建中断管理器，store 为空时使用内存实现。
func NewInterruptManager(store InterruptStore, logger *zap.Logger) *InterruptManager {
	if store == nil {
		store = NewInMemoryInterruptStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterruptManager{
		store:    store,
		logger:   logger.With(zap.String("component", "interrupt_manager")),
		handlers: make(map[InterruptType][]InterruptHandler),
		pending:  make(map[string]*pendingInterrupt),
	}
}

// RegisterHandler 为中断类型注册通知处理器。
func (m *InterruptManager) RegisterHandler(interruptType InterruptType, handler InterruptHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[interruptType] = append(m.handlers[interruptType], handler)
}

// CreateInterrupt 创建中断并阻塞等待响应。
func (m *InterruptManager) CreateInterrupt(ctx context.Context, opts InterruptOptions) (*Response, error) {
	interrupt := &Interrupt{
		ID:          "int_" + uuid.New().String(),
		SessionID:   opts.SessionID,
		Node:        opts.Node,
		Type:        opts.Type,
		Status:      InterruptStatusPending,
		Title:       opts.Title,
		Description: opts.Description,
		Route:       opts.Route,
		CreatedAt:   time.Now(),
		Timeout:     opts.Timeout,
		Metadata:    opts.Metadata,
	}
	if interrupt.Type == "" {
		interrupt.Type = InterruptTypeApproval
	}
	if interrupt.Timeout <= 0 {
		interrupt.Timeout = DefaultInterruptTimeout
	}

	m.logger.Info("creating interrupt",
		zap.String("id", interrupt.ID),
		zap.String("session_id", interrupt.SessionID),
		zap.String("type", string(interrupt.Type)),
		zap.String("route", interrupt.Route),
	)

	if err := m.store.Save(ctx, interrupt); err != nil {
		return nil, fmt.Errorf("save interrupt: %w", err)
	}

	// 处理器拿到的 context 随 CreateInterrupt 返回而结束（响应、取消、超时）
	handlerCtx, stop := context.WithCancel(ctx)
	defer stop()
	pending := &pendingInterrupt{
		interrupt:  interrupt,
		responseCh: make(chan *Response, 1),
	}
	m.mu.Lock()
	m.pending[interrupt.ID] = pending
	m.mu.Unlock()

	// 注册 pending 之后再通知，处理器可以立即 Resolve
	m.notifyHandlers(handlerCtx, interrupt)

	timer := time.NewTimer(interrupt.Timeout)
	defer timer.Stop()

	select {
	case response, ok := <-pending.responseCh:
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInterruptCanceled, interrupt.ID)
		}
		return response, nil
	case <-timer.C:
		m.finish(ctx, interrupt.ID, InterruptStatusTimeout)
		return nil, fmt.Errorf("%w: %s", ErrInterruptTimeout, interrupt.ID)
	case <-ctx.Done():
		m.finish(context.WithoutCancel(ctx), interrupt.ID, InterruptStatusCanceled)
		return nil, ctx.Err()
	}
}

// ResolveInterrupt 提交人工响应。
func (m *InterruptManager) ResolveInterrupt(ctx context.Context, interruptID string, response *Response) error {
	if response == nil {
		return fmt.Errorf("resolve interrupt %s: nil response", interruptID)
	}
	pending, ok := m.take(interruptID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInterruptNotFound, interruptID)
	}

	now := time.Now()
	interrupt := pending.interrupt
	interrupt.Response = response
	interrupt.ResolvedAt = &now
	response.Timestamp = now
	if response.Approved {
		interrupt.Status = InterruptStatusResolved
	} else {
		interrupt.Status = InterruptStatusRejected
	}

	m.logger.Info("resolving interrupt",
		zap.String("id", interruptID),
		zap.Bool("approved", response.Approved),
	)

	if err := m.store.Update(ctx, interrupt); err != nil {
		return fmt.Errorf("update interrupt: %w", err)
	}
	pending.responseCh <- response
	return nil
}

// CancelInterrupt 取消待处理中断，等待方收到 ErrInterruptCanceled。
func (m *InterruptManager) CancelInterrupt(ctx context.Context, interruptID string) error {
	pending, ok := m.take(interruptID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInterruptNotFound, interruptID)
	}

	now := time.Now()
	pending.interrupt.Status = InterruptStatusCanceled
	pending.interrupt.ResolvedAt = &now
	close(pending.responseCh)

	m.logger.Info("interrupt canceled", zap.String("id", interruptID))
	return m.store.Update(ctx, pending.interrupt)
}

// GetPendingInterrupts 返回会话的全部待处理中断，sessionID 为空时返回所有。
func (m *InterruptManager) GetPendingInterrupts(sessionID string) []*Interrupt {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*Interrupt
	for _, p := range m.pending {
		if sessionID == "" || p.interrupt.SessionID == sessionID {
			results = append(results, p.interrupt)
		}
	}
	return results
}

func (m *InterruptManager) take(id string) (*pendingInterrupt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	return p, ok
}

func (m *InterruptManager) finish(ctx context.Context, id string, status InterruptStatus) {
	pending, ok := m.take(id)
	if !ok {
		return
	}
	now := time.Now()
	pending.interrupt.Status = status
	pending.interrupt.ResolvedAt = &now
	if err := m.store.Update(ctx, pending.interrupt); err != nil {
		m.logger.Error("update interrupt failed", zap.String("id", id), zap.Error(err))
	}
	m.logger.Warn("interrupt closed without response",
		zap.String("id", id),
		zap.String("status", string(status)),
	)
}

func (m *InterruptManager) notifyHandlers(ctx context.Context, interrupt *Interrupt) {
	m.mu.RLock()
	handlers := append([]InterruptHandler(nil), m.handlers[interrupt.Type]...)
	m.mu.RUnlock()

	for _, handler := range handlers {
		go func(h InterruptHandler) {
			if err := h(ctx, interrupt); err != nil {
				m.logger.Error("interrupt handler failed", zap.Error(err))
			}
		}(handler)
	}
}

// ----------------------------------------------------------------------------
// InMemoryInterruptStore
// ----------------------------------------------------------------------------

// InMemoryInterruptStore 内存中断存储。
type InMemoryInterruptStore struct {
	interrupts map[string]*Interrupt
	mu         sync.RWMutex
}

func NewInMemoryInterruptStore() *InMemoryInterruptStore {
	return &InMemoryInterruptStore{interrupts: make(map[string]*Interrupt)}
}

func (s *InMemoryInterruptStore) Save(_ context.Context, interrupt *Interrupt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupts[interrupt.ID] = interrupt
	return nil
}

func (s *InMemoryInterruptStore) Load(_ context.Context, interruptID string) (*Interrupt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	interrupt, ok := s.interrupts[interruptID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInterruptNotFound, interruptID)
	}
	return interrupt, nil
}

func (s *InMemoryInterruptStore) List(_ context.Context, sessionID string, status InterruptStatus) ([]*Interrupt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Interrupt
	for _, interrupt := range s.interrupts {
		if (sessionID == "" || interrupt.SessionID == sessionID) &&
			(status == "" || interrupt.Status == status) {
			results = append(results, interrupt)
		}
	}
	return results, nil
}

func (s *InMemoryInterruptStore) Update(_ context.Context, interrupt *Interrupt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupts[interrupt.ID] = interrupt
	return nil
}

package hitl

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- test doubles (function callback pattern) ---

type testInterruptStore struct {
	*InMemoryInterruptStore
	saveFn func(ctx context.Context, interrupt *Interrupt) error
}

func (s *testInterruptStore) Save(ctx context.Context, interrupt *Interrupt) error {
	if s.saveFn != nil {
		return s.saveFn(ctx, interrupt)
	}
	return s.InMemoryInterruptStore.Save(ctx, interrupt)
}

// waitPending 等待 session 出现待处理中断。
func waitPending(t *testing.T, m *InterruptManager, sessionID string) *Interrupt {
	t.Helper()
	var got *Interrupt
	require.Eventually(t, func() bool {
		p := m.GetPendingInterrupts(sessionID)
		if len(p) == 0 {
			return false
		}
		got = p[0]
		return true
	}, time.Second, 5*time.Millisecond)
	return got
}

// --- InMemoryInterruptStore ---

func TestInMemoryInterruptStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryInterruptStore()

	interrupt := &Interrupt{
		ID:        "int_1",
		SessionID: "s1",
		Status:    InterruptStatusPending,
		Type:      InterruptTypeApproval,
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, interrupt))
		loaded, err := store.Load(ctx, "int_1")
		require.NoError(t, err)
		assert.Equal(t, "int_1", loaded.ID)
	})

	t.Run("Load not found", func(t *testing.T) {
		_, err := store.Load(ctx, "nonexistent")
		assert.ErrorIs(t, err, ErrInterruptNotFound)
	})

	t.Run("List by session and status", func(t *testing.T) {
		results, err := store.List(ctx, "s1", InterruptStatusPending)
		require.NoError(t, err)
		assert.Len(t, results, 1)

		results, err = store.List(ctx, "s1", InterruptStatusResolved)
		require.NoError(t, err)
		assert.Empty(t, results)

		results, err = store.List(ctx, "", "")
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

// --- CreateInterrupt ---

func TestCreateAndResolveInterrupt(t *testing.T) {
	t.Parallel()

	store := NewInMemoryInterruptStore()
	m := NewInterruptManager(store, nil)
	ctx := context.Background()

	done := make(chan *Response, 1)
	go func() {
		resp, err := m.CreateInterrupt(ctx, InterruptOptions{SessionID: "s1", Route: "Coder", Timeout: time.Second})
		assert.NoError(t, err)
		done <- resp
	}()

	pending := waitPending(t, m, "s1")
	assert.Equal(t, InterruptTypeApproval, pending.Type)
	assert.Equal(t, "Coder", pending.Route)

	require.NoError(t, m.ResolveInterrupt(ctx, pending.ID, &Response{Approved: true, Comment: "ok"}))

	resp := <-done
	require.NotNil(t, resp)
	assert.True(t, resp.Approved)

	stored, err := store.Load(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, InterruptStatusResolved, stored.Status)
	assert.NotNil(t, stored.ResolvedAt)
	assert.Empty(t, m.GetPendingInterrupts("s1"))
}

func TestResolveInterrupt_Rejected(t *testing.T) {
	t.Parallel()

	store := NewInMemoryInterruptStore()
	m := NewInterruptManager(store, nil)

	done := make(chan *Response, 1)
	go func() {
		resp, _ := m.CreateInterrupt(context.Background(), InterruptOptions{SessionID: "s2", Timeout: time.Second})
		done <- resp
	}()

	pending := waitPending(t, m, "s2")
	require.NoError(t, m.ResolveInterrupt(context.Background(), pending.ID, &Response{Approved: false}))
	assert.False(t, (<-done).Approved)

	stored, _ := store.Load(context.Background(), pending.ID)
	assert.Equal(t, InterruptStatusRejected, stored.Status)
}

func TestCreateInterrupt_Timeout(t *testing.T) {
	t.Parallel()

	store := NewInMemoryInterruptStore()
	m := NewInterruptManager(store, nil)

	_, err := m.CreateInterrupt(context.Background(), InterruptOptions{SessionID: "s3", Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterruptTimeout)

	results, _ := store.List(context.Background(), "s3", InterruptStatusTimeout)
	assert.Len(t, results, 1)
	assert.Empty(t, m.GetPendingInterrupts("s3"))
}

func TestCreateInterrupt_ContextCancelled(t *testing.T) {
	t.Parallel()

	m := NewInterruptManager(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := m.CreateInterrupt(ctx, InterruptOptions{SessionID: "s4", Timeout: time.Minute})
		errCh <- err
	}()
	waitPending(t, m, "s4")
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Empty(t, m.GetPendingInterrupts("s4"))
}

func TestCancelInterrupt(t *testing.T) {
	t.Parallel()

	m := NewInterruptManager(nil, nil)
	errCh := make(chan error, 1)
	go func() {
		_, err := m.CreateInterrupt(context.Background(), InterruptOptions{SessionID: "s5", Timeout: time.Minute})
		errCh <- err
	}()

	pending := waitPending(t, m, "s5")
	require.NoError(t, m.CancelInterrupt(context.Background(), pending.ID))
	assert.ErrorIs(t, <-errCh, ErrInterruptCanceled)

	assert.ErrorIs(t, m.CancelInterrupt(context.Background(), pending.ID), ErrInterruptNotFound)
	assert.ErrorIs(t, m.ResolveInterrupt(context.Background(), pending.ID, &Response{}), ErrInterruptNotFound)
}

func TestCreateInterrupt_SaveError(t *testing.T) {
	t.Parallel()

	store := &testInterruptStore{
		InMemoryInterruptStore: NewInMemoryInterruptStore(),
		saveFn: func(context.Context, *Interrupt) error {
			return errors.New("disk full")
		},
	}
	m := NewInterruptManager(store, nil)
	_, err := m.CreateInterrupt(context.Background(), InterruptOptions{SessionID: "s6"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRegisterHandler_CanResolveImmediately(t *testing.T) {
	t.Parallel()

	m := NewInterruptManager(nil, nil)
	var notified atomic.Int32
	m.RegisterHandler(InterruptTypeApproval, func(ctx context.Context, in *Interrupt) error {
		notified.Add(1)
		return m.ResolveInterrupt(ctx, in.ID, &Response{Approved: true, UserID: "bot"})
	})

	resp, err := m.CreateInterrupt(context.Background(), InterruptOptions{SessionID: "s7", Timeout: time.Second})
	require.NoError(t, err)
	assert.True(t, resp.Approved)
	assert.Equal(t, "bot", resp.UserID)
	assert.Equal(t, int32(1), notified.Load())
}

func TestRegisterHandler_ContextEndsWithInterrupt(t *testing.T) {
	t.Parallel()

	m := NewInterruptManager(nil, nil)
	released := make(chan struct{})
	m.RegisterHandler(InterruptTypeApproval, func(ctx context.Context, in *Interrupt) error {
		<-ctx.Done()
		close(released)
		return nil
	})

	_, err := m.CreateInterrupt(context.Background(), InterruptOptions{SessionID: "s10", Timeout: 20 * time.Millisecond})
	require.ErrorIs(t, err, ErrInterruptTimeout)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("handler context was not canceled after timeout")
	}
}

// --- Approver ---

func TestAutoApprovers(t *testing.T) {
	t.Parallel()

	ok, err := AutoApprove().Approve(context.Background(), ApprovalRequest{Route: "A"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AutoDeny().Approve(context.Background(), ApprovalRequest{Route: "A"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerApprover(t *testing.T) {
	t.Parallel()

	m := NewInterruptManager(nil, nil)
	m.RegisterHandler(InterruptTypeApproval, func(ctx context.Context, in *Interrupt) error {
		return m.ResolveInterrupt(ctx, in.ID, &Response{Approved: in.Route == "Reviewer"})
	})
	a := NewManagerApprover(m, time.Second)

	ok, err := a.Approve(context.Background(), ApprovalRequest{SessionID: "s8", Route: "Reviewer"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Approve(context.Background(), ApprovalRequest{SessionID: "s8", Route: "Coder"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerApprover_TimeoutDenies(t *testing.T) {
	t.Parallel()

	a := NewManagerApprover(NewInterruptManager(nil, nil), 10*time.Millisecond)
	ok, err := a.Approve(context.Background(), ApprovalRequest{SessionID: "s9", Route: "A"})
	require.NoError(t, err)
	assert.False(t, ok)

	a.DenyOnTimeout = false
	_, err = a.Approve(context.Background(), ApprovalRequest{SessionID: "s9", Route: "A"})
	assert.ErrorIs(t, err, ErrInterruptTimeout)
}

package trace

import (
	"encoding/json"
	"fmt"
	"time"
)

// snapshotVersion 在 Snapshot 结构发生不兼容变化时递增。
const snapshotVersion = 1

// Snapshot 是 Trace 的可序列化副本，用于持久化与跨进程恢复。
type Snapshot struct {
	Version       int       `json:"version"`
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id,omitempty"`
	ParentID      string    `json:"parent_id,omitempty"`
	Task          string    `json:"task"`
	Route         string    `json:"route,omitempty"`
	CurrentNode   string    `json:"current_node,omitempty"`
	Iteration     int       `json:"iteration"`
	MaxIterations int       `json:"max_iterations"`
	Steps         []Step    `json:"steps,omitempty"`
	FinalAnswer   *string   `json:"final_answer,omitempty"`
	LastDecision  string    `json:"last_decision,omitempty"`
	Scratch       Scratch   `json:"scratch"`
	RouteHistory  []string  `json:"route_history,omitempty"`
	Agents        []string  `json:"agents,omitempty"`
	Cancelled     bool      `json:"cancelled,omitempty"`
	Terminated    bool      `json:"terminated,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Snapshot 返回当前状态的深拷贝。
func (t *Trace) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		Version:       snapshotVersion,
		ID:            t.id,
		SessionID:     t.sessionID,
		ParentID:      t.parentID,
		Task:          t.task,
		Route:         t.route,
		CurrentNode:   t.currentNode,
		Iteration:     t.iteration,
		MaxIterations: t.maxIterations,
		Steps:         append([]Step(nil), t.steps...),
		LastDecision:  t.lastDecision,
		Scratch:       t.scratch.clone(),
		RouteHistory:  append([]string(nil), t.routeHistory...),
		Agents:        append([]string(nil), t.agents...),
		Cancelled:     t.cancelled,
		Terminated:    t.terminated,
		Error:         t.errText,
		CreatedAt:     t.createdAt,
		UpdatedAt:     t.updatedAt,
	}
	if t.hasFinal {
		answer := t.finalAnswer
		s.FinalAnswer = &answer
	}
	return s
}

// Restore 从快照重建 Trace。
func Restore(s Snapshot) (*Trace, error) {
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("trace snapshot: unsupported version %d", s.Version)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("trace snapshot: missing id")
	}

	t := &Trace{
		id:            s.ID,
		sessionID:     s.SessionID,
		parentID:      s.ParentID,
		task:          s.Task,
		route:         s.Route,
		currentNode:   s.CurrentNode,
		iteration:     s.Iteration,
		maxIterations: s.MaxIterations,
		steps:         append([]Step(nil), s.Steps...),
		lastDecision:  s.LastDecision,
		scratch:       s.Scratch.clone(),
		routeHistory:  append([]string(nil), s.RouteHistory...),
		agents:        append([]string(nil), s.Agents...),
		cancelled:     s.Cancelled,
		terminated:    s.Terminated,
		errText:       s.Error,
		createdAt:     s.CreatedAt,
		updatedAt:     s.UpdatedAt,
	}
	if t.maxIterations <= 0 {
		t.maxIterations = 10
	}
	if s.FinalAnswer != nil {
		t.finalAnswer = *s.FinalAnswer
		t.hasFinal = true
	}
	return t, nil
}

// Marshal 把 Trace 编码为 JSON 快照。
func (t *Trace) Marshal() ([]byte, error) {
	return json.Marshal(t.Snapshot())
}

// Unmarshal 解码 Marshal 生成的数据。
func Unmarshal(data []byte) (*Trace, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("trace snapshot: %w", err)
	}
	return Restore(s)
}

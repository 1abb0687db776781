package agent

import (
	"fmt"

	"github.com/BaSui01/agentteam/types"
)

// Registry 是构建期确定的 name→Agent 映射，构建后不可变，
// 可在并发运行的 Trace 之间共享而无需加锁。
type Registry struct {
	agents map[string]Agent
	order  []string
}

// NewRegistry 按给定顺序注册 Agent。空名与重名返回错误。
func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{agents: make(map[string]Agent, len(agents))}
	for _, a := range agents {
		if a == nil {
			return nil, types.NewError(types.ErrConfigInvalid, "nil agent in registry")
		}
		name := a.Name()
		if name == "" {
			return nil, types.NewError(types.ErrConfigInvalid, "agent has empty name")
		}
		if _, dup := r.agents[name]; dup {
			return nil, types.NewError(types.ErrDuplicateAgent, fmt.Sprintf("agent %q registered twice", name))
		}
		r.agents[name] = a
		r.order = append(r.order, name)
	}
	return r, nil
}

// MustRegistry 同 NewRegistry，失败时 panic。
func MustRegistry(agents ...Agent) *Registry {
	r, err := NewRegistry(agents...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get 按名称查找 Agent。
func (r *Registry) Get(name string) (Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// Lookup 同 Get，找不到时返回 AGENT_NOT_FOUND 错误。
func (r *Registry) Lookup(name string) (Agent, error) {
	a, ok := r.agents[name]
	if !ok {
		return nil, types.NewError(types.ErrAgentNotFound, fmt.Sprintf("agent %q not registered", name))
	}
	return a, nil
}

// Names 按注册顺序返回名称副本。
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Agents 按注册顺序返回 Agent。
func (r *Registry) Agents() []Agent {
	out := make([]Agent, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

// Without 返回排除指定名称后的新注册表，用于把决策 Agent 从候选列表中去掉。
func (r *Registry) Without(names ...string) *Registry {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Registry{agents: make(map[string]Agent)}
	for _, name := range r.order {
		if skip[name] {
			continue
		}
		out.agents[name] = r.agents[name]
		out.order = append(out.order, name)
	}
	return out
}

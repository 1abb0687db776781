package declarative

import (
	"time"

	"github.com/BaSui01/agentteam/agent/collaboration"
)

// TeamDefinition is a declarative team specification: members, the workflow
// graph, the coordination protocol and the decision task settings.
// It is designed to be deserialized from YAML or JSON files.
type TeamDefinition struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`

	// Protocol names a collaboration pattern ("hierarchical", "contract_net", ...)
	Protocol        string                `yaml:"protocol" json:"protocol"`
	ProtocolOptions collaboration.Options `yaml:"protocol_options,omitempty" json:"protocol_options,omitempty"`

	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	MaxSteps      int `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`
	MaxDepth      int `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`

	// Candidates overrides the agents the decision task may route to
	Candidates []string `yaml:"candidates,omitempty" json:"candidates,omitempty"`

	Mediator *MediatorDefinition `yaml:"mediator,omitempty" json:"mediator,omitempty"`
	Agents   []AgentDefinition   `yaml:"agents" json:"agents"`
	Graph    GraphDefinition     `yaml:"graph" json:"graph"`

	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// AgentType 成员类型
type AgentType string

const (
	AgentTypeLLM     AgentType = "llm"     // 单次模型调用的叶子 Worker
	AgentTypeBidding AgentType = "bidding" // ContractNet 招标 Activity
	AgentTypeTeam    AgentType = "team"    // 嵌套团队
)

// AgentDefinition describes one team member.
type AgentDefinition struct {
	Name        string    `yaml:"name" json:"name"`
	Type        AgentType `yaml:"type,omitempty" json:"type,omitempty"` // 默认 llm
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`

	// LLM worker
	Provider      string        `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model         string        `yaml:"model,omitempty" json:"model,omitempty"`
	SystemPrompt  string        `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	HistoryWindow int           `yaml:"history_window,omitempty" json:"history_window,omitempty"`
	Bid           bool          `yaml:"bid,omitempty" json:"bid,omitempty"`
	MaxRetries    int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RetryDelay    time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`

	// Bidding: bidders defaults to every llm/team member
	Bidders     []string `yaml:"bidders,omitempty" json:"bidders,omitempty"`
	Concurrency int      `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`

	// Team: an inline nested team
	Team *TeamDefinition `yaml:"team,omitempty" json:"team,omitempty"`
}

// MediatorDefinition configures the decision task bound to the decision Activity.
type MediatorDefinition struct {
	Name               string        `yaml:"name,omitempty" json:"name,omitempty"`
	Provider           string        `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model              string        `yaml:"model,omitempty" json:"model,omitempty"`
	BasePrompt         string        `yaml:"base_prompt,omitempty" json:"base_prompt,omitempty"`
	FinishMarker       string        `yaml:"finish_marker,omitempty" json:"finish_marker,omitempty"`
	MaxRetries         int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RetryDelay         time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
	HistoryWindow      int           `yaml:"history_window,omitempty" json:"history_window,omitempty"`
	HistoryTokenBudget int           `yaml:"history_token_budget,omitempty" json:"history_token_budget,omitempty"`
	Timeout            time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	Interceptors []InterceptorDefinition `yaml:"interceptors,omitempty" json:"interceptors,omitempty"`
}

// InterceptorDefinition selects a built-in interceptor.
type InterceptorDefinition struct {
	// Type: loop_breaker, iteration_budget, audit, approval
	Type      string `yaml:"type" json:"type"`
	Threshold int    `yaml:"threshold,omitempty" json:"threshold,omitempty"` // loop_breaker
	Max       int    `yaml:"max,omitempty" json:"max,omitempty"`             // iteration_budget
	// approval
	Routes   []string      `yaml:"routes,omitempty" json:"routes,omitempty"`
	Approver string        `yaml:"approver,omitempty" json:"approver,omitempty"` // auto_approve, auto_deny, 或工厂注册的名称
	Timeout  time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// GraphDefinition lists nodes in declaration order; the order of edges on
// an exclusive node is the order its guards are evaluated.
type GraphDefinition struct {
	Nodes []NodeDefinition `yaml:"nodes" json:"nodes"`
}

// NodeDefinition describes a graph node.
type NodeDefinition struct {
	Name string `yaml:"name" json:"name"`
	// Kind: start, activity, exclusive, end
	Kind string `yaml:"kind" json:"kind"`
	// Agent bound to an activity, defaults to Name
	Agent string           `yaml:"agent,omitempty" json:"agent,omitempty"`
	Edges []EdgeDefinition `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// EdgeDefinition is an outgoing edge. When holds a guard expression such as
// `route == "Coder" && iteration < 3`; an empty When is the default edge.
type EdgeDefinition struct {
	To   string `yaml:"to" json:"to"`
	When string `yaml:"when,omitempty" json:"when,omitempty"`
}

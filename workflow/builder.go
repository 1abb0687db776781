package workflow

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// GraphBuilder 以链式 API 声明路由拓扑。
//
// Link/LinkIf 总是作用于最近一次 Add* 或 From 选中的节点：
//
//	g, err := workflow.NewGraphBuilder().
//		AddStart("start").Link("Coder").
//		AddActivity("Coder").Link("Reviewer").
//		AddActivity("Reviewer").Link("end").
//		AddEnd("end").
//		Build()
type GraphBuilder struct {
	nodes   map[string]*Node
	order   []string
	current string
	errs    []error
	logger  *zap.Logger
}

// NewGraphBuilder 创建空的图构建器。
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		nodes:  make(map[string]*Node),
		logger: zap.NewNop(),
	}
}

// WithLogger sets a custom logger
func (b *GraphBuilder) WithLogger(logger *zap.Logger) *GraphBuilder {
	if logger != nil {
		b.logger = logger.With(zap.String("component", "graph_builder"))
	}
	return b
}

// AddStart 添加入口节点。
func (b *GraphBuilder) AddStart(name string) *GraphBuilder {
	return b.add(Node{Name: name, Kind: NodeStart})
}

// AddActivity 添加绑定到 agentName 的 Activity，节点名与 Agent 名相同。
func (b *GraphBuilder) AddActivity(agentName string) *GraphBuilder {
	return b.add(Node{Name: agentName, Kind: NodeActivity, Agent: agentName})
}

// AddActivityNamed 添加节点名与 Agent 名不同的 Activity。
func (b *GraphBuilder) AddActivityNamed(name, agentName string) *GraphBuilder {
	return b.add(Node{Name: name, Kind: NodeActivity, Agent: agentName})
}

// AddExclusive 添加排他网关。
func (b *GraphBuilder) AddExclusive(name string) *GraphBuilder {
	return b.add(Node{Name: name, Kind: NodeExclusive})
}

// AddEnd 添加终止节点。
func (b *GraphBuilder) AddEnd(name string) *GraphBuilder {
	return b.add(Node{Name: name, Kind: NodeEnd})
}

// From 重新选中一个已声明的节点，后续 Link 作用于它。
func (b *GraphBuilder) From(name string) *GraphBuilder {
	if _, ok := b.nodes[name]; !ok {
		b.errs = append(b.errs, &GraphError{Node: name, Reason: "From references undeclared node"})
	}
	b.current = name
	return b
}

// Link 为当前节点添加无条件边。
func (b *GraphBuilder) Link(target string) *GraphBuilder {
	return b.link(target, nil, "")
}

// LinkIf 为当前节点添加带 guard 的边，guard 按声明顺序评估。
func (b *GraphBuilder) LinkIf(target string, guard Guard) *GraphBuilder {
	return b.LinkIfLabeled(target, guard, "")
}

// LinkIfLabeled 同 LinkIf，label 用于日志与展示。
func (b *GraphBuilder) LinkIfLabeled(target string, guard Guard, label string) *GraphBuilder {
	if guard == nil {
		b.errs = append(b.errs, &GraphError{Node: b.current, Target: target, Reason: "LinkIf requires a guard"})
		return b
	}
	return b.link(target, guard, label)
}

func (b *GraphBuilder) add(n Node) *GraphBuilder {
	if n.Name == "" {
		b.errs = append(b.errs, &GraphError{Reason: fmt.Sprintf("%s node has empty name", n.Kind)})
		return b
	}
	if _, dup := b.nodes[n.Name]; dup {
		b.errs = append(b.errs, &GraphError{Node: n.Name, Reason: "duplicate node name"})
		b.current = n.Name
		return b
	}
	if n.Kind == NodeActivity && n.Agent == "" {
		b.errs = append(b.errs, &GraphError{Node: n.Name, Reason: "activity has no agent"})
	}
	node := n
	b.nodes[n.Name] = &node
	b.order = append(b.order, n.Name)
	b.current = n.Name
	return b
}

func (b *GraphBuilder) link(target string, guard Guard, label string) *GraphBuilder {
	n, ok := b.nodes[b.current]
	if !ok {
		b.errs = append(b.errs, &GraphError{Target: target, Reason: "link without a current node"})
		return b
	}
	n.Edges = append(n.Edges, Edge{From: n.Name, To: target, Guard: guard, Label: label})
	return b
}

// Build 校验并编译图。所有校验错误通过 errors.Join 一并返回，
// 每一项都是 *GraphError。
func (b *GraphBuilder) Build() (*Graph, error) {
	errs := append([]error(nil), b.errs...)
	errs = append(errs, b.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g := &Graph{
		nodes: make(map[string]Node, len(b.nodes)),
		order: append([]string(nil), b.order...),
	}
	for _, name := range b.order {
		n := b.nodes[name].clone()
		g.nodes[name] = n
		switch n.Kind {
		case NodeStart:
			g.start = name
		case NodeEnd:
			g.ends = append(g.ends, name)
		}
	}

	b.logger.Debug("graph built",
		zap.String("start", g.start),
		zap.Int("nodes", len(g.order)),
		zap.Strings("ends", g.ends),
	)
	return g, nil
}

func (b *GraphBuilder) validate() []error {
	var (
		errs   []error
		starts []string
		ends   int
	)

	for _, name := range b.order {
		n := b.nodes[name]
		switch n.Kind {
		case NodeStart:
			starts = append(starts, name)
			if len(n.Edges) != 1 || n.Edges[0].Guard != nil {
				errs = append(errs, &GraphError{Node: name, Reason: "start must have exactly one unguarded edge"})
			}
		case NodeEnd:
			ends++
			if len(n.Edges) > 0 {
				errs = append(errs, &GraphError{Node: name, Reason: "end must not have edges"})
			}
		case NodeActivity:
			if len(n.Edges) > 1 {
				errs = append(errs, &GraphError{Node: name, Reason: "activity must have at most one edge"})
			}
			if len(n.Edges) == 1 && n.Edges[0].Guard != nil {
				errs = append(errs, &GraphError{Node: name, Reason: "activity edge must be unguarded; use an exclusive gateway"})
			}
		case NodeExclusive:
			errs = append(errs, validateExclusive(n)...)
		}

		for _, e := range n.Edges {
			if _, ok := b.nodes[e.To]; !ok {
				errs = append(errs, &GraphError{Node: name, Target: e.To, Reason: "dangling edge"})
			}
		}
	}

	if len(starts) != 1 {
		errs = append(errs, &GraphError{Reason: fmt.Sprintf("graph must have exactly one start node, found %d", len(starts))})
	}
	if ends == 0 {
		errs = append(errs, &GraphError{Reason: "graph must have at least one end node"})
	}
	if len(starts) == 1 && len(errs) == 0 {
		errs = append(errs, b.checkReachability(starts[0])...)
	}
	return errs
}

func validateExclusive(n *Node) []error {
	if len(n.Edges) == 0 {
		return []error{&GraphError{Node: n.Name, Reason: "exclusive gateway needs at least one edge"}}
	}
	var errs []error
	for i, e := range n.Edges {
		if e.Guard == nil && i != len(n.Edges)-1 {
			errs = append(errs, &GraphError{Node: n.Name, Target: e.To, Reason: "default edge must be declared last"})
		}
	}
	return errs
}

// checkReachability 要求每个 Activity/Exclusive 都能从 Start 到达。
// 动态 Activity 可以路由到任意节点。
func (b *GraphBuilder) checkReachability(start string) []error {
	visited := map[string]bool{start: true}
	queue := []string{start}
	dynamic := false

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		n := b.nodes[name]
		if n.IsDynamic() {
			dynamic = true
			break
		}
		for _, e := range n.Edges {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	if dynamic {
		return nil
	}

	var errs []error
	for _, name := range b.order {
		n := b.nodes[name]
		if (n.Kind == NodeActivity || n.Kind == NodeExclusive) && !visited[name] {
			errs = append(errs, &GraphError{Node: name, Reason: "unreachable from start"})
		}
	}
	return errs
}

package workflow

// NodeKind 节点类型
type NodeKind string

const (
	// NodeStart 唯一入口，恰好一条无条件出边
	NodeStart NodeKind = "start"
	// NodeActivity 绑定一个 Agent；一条出边或由 Trace 的 route 动态决定
	NodeActivity NodeKind = "activity"
	// NodeExclusive 排他网关，按声明顺序评估 guard
	NodeExclusive NodeKind = "exclusive"
	// NodeEnd 终止节点，没有出边
	NodeEnd NodeKind = "end"
)

// State 是 guard 可读取的运行时状态，由执行 Trace 实现。
type State interface {
	// Route 返回最近一次决策写入的目标节点名
	Route() string
	// Value 按名称读取一个命名值（如 "iteration"、"scratch.approved"）
	Value(key string) (any, bool)
}

// Guard 是排他网关出边上的布尔谓词。
type Guard func(State) bool

// Edge 有向边。Guard 为空表示无条件（默认）边。
type Edge struct {
	From  string
	To    string
	Guard Guard
	// Label 仅用于展示与日志，例如 guard 的原始表达式
	Label string
}

// Node 图节点
type Node struct {
	Name  string
	Kind  NodeKind
	Agent string // 仅 Activity 有效
	Edges []Edge
}

// IsDynamic 报告 Activity 是否没有固定出边，下一跳取自 Trace 的 route。
func (n Node) IsDynamic() bool {
	return n.Kind == NodeActivity && len(n.Edges) == 0
}

func (n Node) clone() Node {
	c := n
	if n.Edges != nil {
		c.Edges = make([]Edge, len(n.Edges))
		copy(c.Edges, n.Edges)
	}
	return c
}

// Graph 是编译后的不可变路由拓扑，可在并发运行的 Trace 之间共享。
type Graph struct {
	nodes map[string]Node
	order []string
	start string
	ends  []string
}

// Start 返回入口节点名。
func (g *Graph) Start() string { return g.start }

// Node 返回节点副本。
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Nodes 按声明顺序返回所有节点的副本。
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name].clone())
	}
	return out
}

// Activities 按声明顺序返回所有 Activity 节点。
func (g *Graph) Activities() []Node {
	var out []Node
	for _, name := range g.order {
		if n := g.nodes[name]; n.Kind == NodeActivity {
			out = append(out, n.clone())
		}
	}
	return out
}

// Ends 返回所有 End 节点名（声明顺序）。
func (g *Graph) Ends() []string {
	out := make([]string, len(g.ends))
	copy(out, g.ends)
	return out
}

// TerminalNode 返回第一个 End 节点，决策任务强制终止时路由到这里。
func (g *Graph) TerminalNode() string { return g.ends[0] }

// IsEnd 报告 name 是否为 End 节点。
func (g *Graph) IsEnd(name string) bool {
	n, ok := g.nodes[name]
	return ok && n.Kind == NodeEnd
}

// Has 报告图中是否存在该节点。
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// ResolveNextNode 计算 current 之后的下一个节点。
//
// Start 与普通 Activity 返回唯一的固定出边；动态 Activity 返回 s.Route()；
// Exclusive 按声明顺序评估 guard，第一个为真的边胜出，无 guard 的边无条件匹配。
// 没有匹配的边、或解析出的名字不是图中节点时返回 *GraphError。
// 该方法没有副作用。
func (g *Graph) ResolveNextNode(current string, s State) (string, error) {
	n, ok := g.nodes[current]
	if !ok {
		return "", &GraphError{Node: current, Reason: "unknown node"}
	}

	var next string
	switch n.Kind {
	case NodeEnd:
		return "", &GraphError{Node: current, Reason: "end node has no successor"}
	case NodeStart:
		next = n.Edges[0].To
	case NodeActivity:
		if n.IsDynamic() {
			next = s.Route()
			if next == "" {
				return "", &GraphError{Node: current, Reason: "dynamic activity has no route"}
			}
		} else {
			next = n.Edges[0].To
		}
	case NodeExclusive:
		matched := false
		for _, e := range n.Edges {
			if e.Guard == nil || e.Guard(s) {
				next = e.To
				matched = true
				break
			}
		}
		if !matched {
			return "", &GraphError{Node: current, Reason: "no guard matched and no default edge"}
		}
	default:
		return "", &GraphError{Node: current, Reason: "unsupported node kind " + string(n.Kind)}
	}

	if _, ok := g.nodes[next]; !ok {
		return "", &GraphError{Node: current, Target: next, Reason: "target is not a node"}
	}
	return next, nil
}

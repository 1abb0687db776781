package workflow

import "fmt"

// GraphError 图配置错误。构建期与运行期解析失败都使用它，
// 它总是意味着图声明有误，不应被静默吞掉。
type GraphError struct {
	Node   string
	Target string
	Reason string
}

func (e *GraphError) Error() string {
	switch {
	case e.Node == "":
		return "workflow graph: " + e.Reason
	case e.Target != "":
		return fmt.Sprintf("workflow graph: node %q -> %q: %s", e.Node, e.Target, e.Reason)
	default:
		return fmt.Sprintf("workflow graph: node %q: %s", e.Node, e.Reason)
	}
}

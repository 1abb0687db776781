package guard

import "github.com/BaSui01/agentteam/workflow"

// Guard 把编译后的表达式适配为 workflow.Guard，变量从 State.Value 读取。
// "route" 总是可用，即使 State 没有把它列为命名值。
func Guard(e *Expr) workflow.Guard {
	return func(s workflow.State) bool {
		return e.Eval(StateLookup(s))
	}
}

// StateLookup 把 workflow.State 适配为 Lookup。
func StateLookup(s workflow.State) Lookup {
	return func(name string) (any, bool) {
		if v, ok := s.Value(name); ok {
			return v, true
		}
		if name == "route" {
			return s.Route(), true
		}
		return nil, false
	}
}

// Parse 编译表达式并返回 workflow.Guard 与标签，便于 GraphBuilder.LinkIfLabeled。
func Parse(src string) (workflow.Guard, string, error) {
	e, err := Compile(src)
	if err != nil {
		return nil, "", err
	}
	return Guard(e), e.String(), nil
}

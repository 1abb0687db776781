package guard

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup 按名称读取变量。名称可以带点（如 "scratch.approved"）。
type Lookup func(name string) (any, bool)

// MapLookup 从嵌套 map 中按点路径读取变量：
// "result.score" 读取 vars["result"].(map[string]any)["score"]。
// 完整的带点键优先于路径解析。
func MapLookup(vars map[string]any) Lookup {
	return func(name string) (any, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		var current any = vars
		for _, part := range strings.Split(name, ".") {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			if current, ok = m[part]; !ok {
				return nil, false
			}
		}
		return current, true
	}
}

// Eval 求值并转换为布尔结果。未定义的变量按 nil 处理。
func (e *Expr) Eval(lookup Lookup) bool {
	if lookup == nil {
		lookup = func(string) (any, bool) { return nil, false }
	}
	return toBool(e.root.eval(lookup))
}

func (n literalNode) eval(Lookup) any { return n.value }

func (n varNode) eval(lookup Lookup) any {
	v, ok := lookup(n.name)
	if !ok {
		return nil
	}
	return v
}

func (n notNode) eval(lookup Lookup) any { return !toBool(n.operand.eval(lookup)) }

func (n binaryNode) eval(lookup Lookup) any {
	switch n.op {
	case "&&":
		return toBool(n.left.eval(lookup)) && toBool(n.right.eval(lookup))
	case "||":
		return toBool(n.left.eval(lookup)) || toBool(n.right.eval(lookup))
	default:
		return compare(n.left.eval(lookup), n.op, n.right.eval(lookup))
	}
}

// compare 比较两个值。nil 小于任何非 nil 值，两个 nil 相等。
func compare(left any, op string, right any) bool {
	if left == nil && right == nil {
		return op == "==" || op == ">=" || op == "<="
	}
	if left == nil || right == nil {
		switch op {
		case "!=":
			return true
		case "==":
			return false
		}
		if left == nil {
			return op == "<" || op == "<="
		}
		return op == ">" || op == ">="
	}

	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf
		case "!=":
			return lf != rf
		case ">":
			return lf > rf
		case "<":
			return lf < rf
		case ">=":
			return lf >= rf
		case "<=":
			return lf <= rf
		}
	}

	lb, lIsBool := left.(bool)
	rb, rIsBool := right.(bool)
	if lIsBool || rIsBool {
		if !lIsBool {
			lb = toBool(left)
		}
		if !rIsBool {
			rb = toBool(right)
		}
		switch op {
		case "==":
			return lb == rb
		case "!=":
			return lb != rb
		}
		return false
	}

	ls := fmt.Sprint(left)
	rs := fmt.Sprint(right)
	switch op {
	case "==":
		return ls == rs
	case "!=":
		return ls != rs
	case ">":
		return ls > rs
	case "<":
		return ls < rs
	case ">=":
		return ls >= rs
	case "<=":
		return ls <= rs
	}
	return false
}

func toBool(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != "" && val != "false" && val != "0"
	case []string:
		return len(val) > 0
	default:
		return true
	}
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

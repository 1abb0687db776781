package guard

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr 是编译后的 guard 表达式，可被多个 goroutine 并发求值。
type Expr struct {
	src  string
	root node
}

// Compile 把表达式解析为语法树。
// 支持 == != > < >= <= && || !、括号、数字/字符串/布尔字面量，
// 以及带点的变量名（如 scratch.approved）。
func Compile(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("guard: empty expression")
	}

	tokens, err := tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("guard %q: %w", src, err)
	}

	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("guard %q: %w", src, err)
	}
	if p.pos < len(p.tokens) {
		t := p.tokens[p.pos]
		return nil, fmt.Errorf("guard %q: unexpected token %q at position %d", src, t.value, t.pos)
	}
	return &Expr{src: src, root: root}, nil
}

// MustCompile 同 Compile，失败时 panic。用于包级变量与测试。
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String 返回原始表达式。
func (e *Expr) String() string { return e.src }

// Variables 返回表达式引用的变量名（去重，按首次出现顺序）。
func (e *Expr) Variables() []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	var walk func(n node)
	walk = func(n node) {
		switch v := n.(type) {
		case varNode:
			if !seen[v.name] {
				seen[v.name] = true
				out = append(out, v.name)
			}
		case notNode:
			walk(v.operand)
		case binaryNode:
			walk(v.left)
			walk(v.right)
		}
	}
	walk(e.root)
	return out
}

// --- AST ---

type node interface {
	eval(lookup Lookup) any
}

type literalNode struct{ value any }

type varNode struct{ name string }

type notNode struct{ operand node }

type binaryNode struct {
	op          string
	left, right node
}

// --- Recursive descent parser ---

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peekOp(ops ...string) (string, bool) {
	if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tkOp {
		return "", false
	}
	for _, op := range ops {
		if p.tokens[p.pos].value == op {
			return op, true
		}
	}
	return "", false
}

// parseOr handles: expr || expr
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.peekOp("||"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "||", left: left, right: right}
	}
}

// parseAnd handles: expr && expr
func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.peekOp("&&"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "&&", left: left, right: right}
	}
}

// parseComparison handles: expr (==|!=|>|<|>=|<=) expr
func (p *parser) parseComparison() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	op, ok := p.peekOp("==", "!=", ">", "<", ">=", "<=")
	if !ok {
		return left, nil
	}
	p.pos++
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return binaryNode{op: op, left: left, right: right}, nil
}

// parseUnary handles: !expr, primary
func (p *parser) parseUnary() (node, error) {
	if _, ok := p.peekOp("!"); ok {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.pos >= len(p.tokens) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	t := p.tokens[p.pos]
	p.pos++

	switch t.kind {
	case tkNumber:
		f, err := strconv.ParseFloat(t.value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t.value, err)
		}
		return literalNode{value: f}, nil
	case tkString:
		return literalNode{value: t.value}, nil
	case tkIdent:
		switch t.value {
		case "true":
			return literalNode{value: true}, nil
		case "false":
			return literalNode{value: false}, nil
		case "nil", "null":
			return literalNode{value: nil}, nil
		}
		return varNode{name: t.value}, nil
	case tkLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tkRParen {
			return nil, fmt.Errorf("expected closing parenthesis")
		}
		p.pos++
		return inner, nil
	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", t.value, t.pos)
	}
}

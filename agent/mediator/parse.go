package mediator

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DecisionKind 是决策文本解析结果的类别。
type DecisionKind int

const (
	DecisionEmpty     DecisionKind = iota // 空文本
	DecisionFinish                        // 命中结束标记
	DecisionRoute                         // 匹配到候选 Agent
	DecisionUnmatched                     // 非空但无法匹配
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionFinish:
		return "finish"
	case DecisionRoute:
		return "route"
	case DecisionUnmatched:
		return "unmatched"
	default:
		return "empty"
	}
}

// Decision 是 ParseDecision 的结果。
type Decision struct {
	Kind DecisionKind
	// Route 是匹配到的候选名（保持注册时的大小写）
	Route string
	// Answer 是结束标记之后的文本，可能为空
	Answer string
	// Fuzzy 表示匹配发生在去除标点后的第二轮
	Fuzzy bool
}

// ParseDecision 把模型的原始决策文本解析为路由或结束信号。
//
//  1. 文本（不区分大小写）包含结束标记：结束，标记之后的文本为答案；
//  2. 按名称长度降序逐个尝试候选，要求整词边界；
//  3. 仍未匹配时把非字母数字字符折叠为空格再扫描一次；
//  4. 都失败时返回 DecisionUnmatched。
func ParseDecision(raw string, candidates []string, finishMarker string) Decision {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Decision{Kind: DecisionEmpty}
	}

	if finishMarker != "" {
		if i := indexFold(text, finishMarker); i >= 0 {
			answer := text[i+len(finishMarker):]
			answer = strings.TrimLeft(answer, " \t\r\n:：-")
			return Decision{Kind: DecisionFinish, Answer: strings.TrimSpace(answer)}
		}
	}

	ordered := longestFirst(candidates)
	for _, name := range ordered {
		if containsWord(text, name) {
			return Decision{Kind: DecisionRoute, Route: name}
		}
	}

	folded := foldPunct(text)
	for _, name := range ordered {
		if n := foldPunct(name); n != "" && containsWord(folded, n) {
			return Decision{Kind: DecisionRoute, Route: name, Fuzzy: true}
		}
	}
	return Decision{Kind: DecisionUnmatched}
}

// longestFirst 按名称长度降序排序，长度相同保持原顺序。
func longestFirst(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

// containsWord 报告 name 是否以整词形式出现在 text 中（不区分大小写）。
func containsWord(text, name string) bool {
	lower := strings.ToLower(text)
	needle := strings.ToLower(name)
	for from := 0; from <= len(lower)-len(needle); {
		i := strings.Index(lower[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		if boundaryBefore(lower, start) && boundaryAfter(lower, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(lower[start:])
		from = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// foldPunct 把所有非字母数字字符替换为空格，并把连续空白合并为一个。
func foldPunct(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// indexFold 是不区分大小写的 strings.Index，返回 s 中的字节偏移。
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

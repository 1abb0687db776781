package collaboration

import (
	"regexp"
	"strings"

	"github.com/BaSui01/agentteam/agent/trace"
)

// handoffPatterns 识别显式交接措辞，捕获目标名称。
var handoffPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:hand\s*off|handoff|transfer|delegate|pass)\s+(?:it\s+|this\s+)?to\s+@?([\p{L}\p{N}_\-]+)`),
	regexp.MustCompile(`(?i)\bnext\s*:\s*@?([\p{L}\p{N}_\-]+)`),
	regexp.MustCompile(`(?:^|\s)@([\p{L}\p{N}_\-]+)`),
}

// A2A 自主交接：Agent 在输出中点名继任者，显式交接措辞优先于通用名称匹配。
type A2A struct {
	Base
	finishMarker string
}

func NewA2A(finishMarker string) *A2A {
	if finishMarker == "" {
		finishMarker = DefaultFinishMarker
	}
	return &A2A{Base: NewBase(string(PatternA2A)), finishMarker: finishMarker}
}

func (*A2A) PrepareInstruction(*trace.Trace) string {
	return "Agents hand work to each other directly. If the latest agent named a successor " +
		"(for example \"handoff to X\"), honour it unless it is clearly wrong."
}

func (*A2A) PrepareContext(tr *trace.Trace) string {
	last, ok := tr.LastAgentStep()
	if !ok {
		return "Handoff state: no agent has run yet."
	}
	if target, found := FindHandoff(last.Content, tr.Agents()); found {
		return "Handoff state: " + last.Source + " requested a handoff to " + target + "."
	}
	return "Handoff state: " + last.Source + " did not name a successor."
}

// ResolveRoute 先在原始决策中查找显式交接。决策包含结束标记或点名了候选时
// 交给通用解析；只有决策为空或无法解析时才采用最近一次 Agent 输出中的交接。
func (a *A2A) ResolveRoute(tr *trace.Trace, raw string) (string, bool) {
	candidates := tr.Agents()
	if target, ok := FindHandoff(raw, candidates); ok {
		return target, true
	}
	if strings.Contains(strings.ToLower(raw), strings.ToLower(a.finishMarker)) {
		return "", false
	}
	if mentionsAny(raw, candidates) {
		return "", false
	}
	if target, ok := FindHandoff(tr.LastOutput(), candidates); ok {
		return target, true
	}
	return "", false
}

// mentionsAny 判断文本是否以整词形式（不区分大小写）提到任一候选。
func mentionsAny(text string, candidates []string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, c := range candidates {
		re := regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(c) + `(?:$|[^\p{L}\p{N}_])`)
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// FindHandoff 在文本中查找指向候选之一的交接措辞（名称不区分大小写）。
func FindHandoff(text string, candidates []string) (string, bool) {
	if text == "" || len(candidates) == 0 {
		return "", false
	}
	byLower := make(map[string]string, len(candidates))
	for _, c := range candidates {
		byLower[strings.ToLower(c)] = c
	}
	for _, re := range handoffPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := strings.TrimRight(m[1], "-_")
			if c, ok := byLower[strings.ToLower(name)]; ok {
				return c, true
			}
		}
	}
	return "", false
}

package tokenizer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingRule 把模型名前缀映射到 tiktoken 编码与上下文窗口。
type encodingRule struct {
	prefix    string
	encoding  string
	maxTokens int
}

// openAIEncodings 按前缀长度降序排列，保证 "gpt-4o" 先于 "gpt-4" 命中。
var openAIEncodings = sortedRules([]encodingRule{
	{prefix: "gpt-4.1", encoding: tiktoken.MODEL_O200K_BASE, maxTokens: 1047576},
	{prefix: "gpt-4o", encoding: tiktoken.MODEL_O200K_BASE, maxTokens: 128000},
	{prefix: "o1", encoding: tiktoken.MODEL_O200K_BASE, maxTokens: 200000},
	{prefix: "o3", encoding: tiktoken.MODEL_O200K_BASE, maxTokens: 200000},
	{prefix: "o4", encoding: tiktoken.MODEL_O200K_BASE, maxTokens: 200000},
	{prefix: "gpt-4-turbo", encoding: tiktoken.MODEL_CL100K_BASE, maxTokens: 128000},
	{prefix: "gpt-4", encoding: tiktoken.MODEL_CL100K_BASE, maxTokens: 8192},
	{prefix: "gpt-3.5-turbo", encoding: tiktoken.MODEL_CL100K_BASE, maxTokens: 16385},
})

func sortedRules(rules []encodingRule) []encodingRule {
	sort.SliceStable(rules, func(i, j int) bool { return len(rules[i].prefix) > len(rules[j].prefix) })
	return rules
}

// lookupEncoding 返回模型对应的规则，未知模型回退到 cl100k_base / 8k。
func lookupEncoding(model string) encodingRule {
	for _, r := range openAIEncodings {
		if strings.HasPrefix(model, r.prefix) {
			return r
		}
	}
	return encodingRule{prefix: model, encoding: tiktoken.MODEL_CL100K_BASE, maxTokens: 8192}
}

// TiktokenTokenizer 用 tiktoken 精确计数，决策提示词的历史裁剪依赖它。
// 编码表在首次计数时加载。
type TiktokenTokenizer struct {
	rule encodingRule

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewTiktokenTokenizer 为给定模型创建分词器。
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	return &TiktokenTokenizer{rule: lookupEncoding(model)}
}

func (t *TiktokenTokenizer) encoding() (*tiktoken.Tiktoken, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.GetEncoding(t.rule.encoding)
		if t.err != nil {
			t.err = fmt.Errorf("load tiktoken encoding %s: %w", t.rule.encoding, t.err)
		}
	})
	return t.enc, t.err
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	enc, err := t.encoding()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountMessages 每条消息按角色与内容计数，另加 4 个格式 token，整段对话再加 3 个。
func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	enc, err := t.encoding()
	if err != nil {
		return 0, err
	}
	total := 3
	for _, m := range messages {
		total += 4 + len(enc.Encode(m.Role, nil, nil)) + len(enc.Encode(m.Content, nil, nil))
	}
	return total, nil
}

func (t *TiktokenTokenizer) MaxTokens() int { return t.rule.maxTokens }

func (t *TiktokenTokenizer) Name() string { return "tiktoken[" + t.rule.encoding + "]" }

var registerOpenAI sync.Once

// RegisterOpenAITokenizers 把 OpenAI 模型前缀登记到全局注册表，重复调用无副作用。
func RegisterOpenAITokenizers() {
	registerOpenAI.Do(func() {
		for _, r := range openAIEncodings {
			RegisterTokenizer(r.prefix, NewTiktokenTokenizer(r.prefix))
		}
	})
}

package collaboration

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/types"
)

// RouteFinish 是协议返回的特殊路由，表示路由到终止节点。
const RouteFinish = "__finish__"

// DefaultFinishMarker 是决策文本中表示结束的默认标记。
const DefaultFinishMarker = "FINISH"

// Protocol 协调规约：决定决策任务是否运行、向提示词注入什么、
// 以及如何覆盖或否决原始决策。
//
// 实现必须是无状态的：同一个实例被并发运行的多个 Trace 共享，
// 每次运行的记账数据放在 Trace 的 scratch 中。
type Protocol interface {
	// Name 返回协议名
	Name() string

	// ShouldRun 为 false 时跳过整个决策步骤
	ShouldRun(tr *trace.Trace) bool

	// PrepareInstruction 追加到 system prompt
	PrepareInstruction(tr *trace.Trace) string

	// PrepareContext 追加到 user prompt 开头
	PrepareContext(tr *trace.Trace) string

	// ResolveRoute 不依赖文本解析直接给出目标；ok 为 false 时交给通用解析
	ResolveRoute(tr *trace.Trace, raw string) (route string, ok bool)

	// AcceptsRoute 否决钩子，返回 false 强制终止
	AcceptsRoute(tr *trace.Trace, raw string) bool

	// OnRouted 路由提交后的通知
	OnRouted(tr *trace.Trace, target string)
}

// Director 是可选接口：协议可以在不调用模型的情况下直接给出路由。
type Director interface {
	Direct(tr *trace.Trace) (route string, ok bool)
}

// HistoryPolicy 是可选接口：覆盖决策提示词中的历史窗口，0 表示完整历史。
type HistoryPolicy interface {
	HistoryWindow() int
}

// Pattern 协作模式
type Pattern string

const (
	PatternSequential   Pattern = "sequential"   // 顺序交接
	PatternHierarchical Pattern = "hierarchical" // 单一主管
	PatternContractNet  Pattern = "contract_net" // 招标/授标
	PatternBlackboard   Pattern = "blackboard"   // 共享黑板
	PatternSwarm        Pattern = "swarm"        // 对等群体
	PatternMarketBased  Pattern = "market_based" // 市场
	PatternA2A          Pattern = "a2a"          // 自主交接
	PatternNone         Pattern = "none"         // 纯手工图
)

// Patterns 返回所有内置模式。
func Patterns() []Pattern {
	return []Pattern{
		PatternSequential, PatternHierarchical, PatternContractNet, PatternBlackboard,
		PatternSwarm, PatternMarketBased, PatternA2A, PatternNone,
	}
}

// ParsePattern 解析模式名，忽略大小写以及 '-'、'_' 的差异。
func ParsePattern(s string) (Pattern, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	switch norm {
	case "contractnet":
		norm = string(PatternContractNet)
	case "marketbased", "market":
		norm = string(PatternMarketBased)
	case "":
		norm = string(PatternNone)
	}
	for _, p := range Patterns() {
		if string(p) == norm {
			return p, nil
		}
	}
	return "", types.NewError(types.ErrProtocolUnknown, fmt.Sprintf("unknown collaboration pattern %q", s))
}

// Options 配置内置协议。
type Options struct {
	// Order 是 Sequential 的交接顺序，为空时使用 Trace 的候选 Agent 顺序
	Order []string `yaml:"order,omitempty" json:"order,omitempty"`
	// Supervisor 是 Hierarchical 的主管名称，仅用于提示词
	Supervisor string `yaml:"supervisor,omitempty" json:"supervisor,omitempty"`
	// BiddingNode 是 ContractNet 招标 Activity 的节点名
	BiddingNode string `yaml:"bidding_node,omitempty" json:"bidding_node,omitempty"`
	// FinishMarker 是 A2A 识别结束决策所用的标记，为空时取 DefaultFinishMarker
	FinishMarker string `yaml:"finish_marker,omitempty" json:"finish_marker,omitempty"`
}

// New 按模式构建协议，在构建期调用一次。
func New(p Pattern, opts Options) (Protocol, error) {
	switch p {
	case PatternSequential:
		return NewSequential(opts.Order), nil
	case PatternHierarchical:
		return NewHierarchical(opts.Supervisor), nil
	case PatternContractNet:
		return NewContractNet(opts.BiddingNode), nil
	case PatternBlackboard:
		return NewBlackboard(), nil
	case PatternSwarm:
		return NewSwarm(), nil
	case PatternMarketBased:
		return NewMarketBased(), nil
	case PatternA2A:
		return NewA2A(opts.FinishMarker), nil
	case PatternNone:
		return NewNone(), nil
	default:
		return nil, types.NewError(types.ErrProtocolUnknown, fmt.Sprintf("unknown collaboration pattern %q", p))
	}
}

// Base 提供所有钩子的默认实现，内置协议嵌入它并只覆盖需要的方法。
type Base struct {
	name string
}

// NewBase 创建具名 Base，供自定义协议嵌入。
func NewBase(name string) Base { return Base{name: name} }

func (b Base) Name() string                                   { return b.name }
func (Base) ShouldRun(*trace.Trace) bool                      { return true }
func (Base) PrepareInstruction(*trace.Trace) string           { return "" }
func (Base) PrepareContext(*trace.Trace) string               { return "" }
func (Base) ResolveRoute(*trace.Trace, string) (string, bool) { return "", false }
func (Base) AcceptsRoute(*trace.Trace, string) bool           { return true }
func (Base) OnRouted(*trace.Trace, string)                    {}

package collaboration

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentteam/agent"
	"github.com/BaSui01/agentteam/agent/trace"
)

const (
	// DefaultBiddingNode 是招标 Activity 的默认节点名
	DefaultBiddingNode = "Bidding"

	// ScratchProposals 保存已收集的投标（每项为 Proposal.String()）
	ScratchProposals = "contract_net.proposals"
	// ScratchAwarded 保存授标目标
	ScratchAwarded = "contract_net.awarded"
)

// ContractNet 两阶段协议：先路由到招标 Activity 收集所有投标，
// 再由决策步骤根据投标授标。
type ContractNet struct {
	Base
	biddingNode string
}

func NewContractNet(biddingNode string) *ContractNet {
	if biddingNode == "" {
		biddingNode = DefaultBiddingNode
	}
	return &ContractNet{Base: NewBase(string(PatternContractNet)), biddingNode: biddingNode}
}

// BiddingNode 返回招标节点名。
func (c *ContractNet) BiddingNode() string { return c.biddingNode }

// Direct 在尚未收集投标时直接路由到招标节点，不调用模型。
func (c *ContractNet) Direct(tr *trace.Trace) (string, bool) {
	if len(tr.ScratchList(ScratchProposals)) == 0 {
		return c.biddingNode, true
	}
	return "", false
}

func (c *ContractNet) PrepareInstruction(tr *trace.Trace) string {
	if _, awarded := tr.ScratchValue(ScratchAwarded); awarded {
		return "The contract has been awarded and executed. Review the result and either finish " +
			"or award a follow-up step to the best bidder."
	}
	return "Bids have been collected from every team member. Act as the contract manager: " +
		"award the task to the single agent whose proposal is best. Do not award to " + c.biddingNode + "."
}

func (c *ContractNet) PrepareContext(tr *trace.Trace) string {
	proposals := tr.ScratchList(ScratchProposals)
	if len(proposals) == 0 {
		return ""
	}
	return "Proposals:\n- " + strings.Join(proposals, "\n- ")
}

func (c *ContractNet) OnRouted(tr *trace.Trace, target string) {
	if target == c.biddingNode || !contains(tr.Agents(), target) {
		return
	}
	if len(tr.ScratchList(ScratchProposals)) > 0 {
		tr.SetScratchValue(ScratchAwarded, target)
	}
}

// ----------------------------------------------------------------------------
// BiddingAgent
// ----------------------------------------------------------------------------

// BiddingAgent 是 ContractNet 的招标 Activity：并发调用每个投标者的 Estimate，
// 按注册顺序把结果写入 Trace scratch。
type BiddingAgent struct {
	name    string
	bidders []agent.Agent
	limit   int
	logger  *zap.Logger
}

// NewBiddingAgent 创建招标 Agent。limit <= 0 表示不限制并发。
func NewBiddingAgent(name string, bidders []agent.Agent, limit int, logger *zap.Logger) *BiddingAgent {
	if name == "" {
		name = DefaultBiddingNode
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BiddingAgent{
		name:    name,
		bidders: append([]agent.Agent(nil), bidders...),
		limit:   limit,
		logger:  logger.With(zap.String("component", "bidding"), zap.String("agent", name)),
	}
}

func (b *BiddingAgent) Name() string { return b.name }

func (b *BiddingAgent) Description() string {
	return "Collects a proposal from every team member (contract-net bidding phase)."
}

// Invoke 收集投标。Estimate 失败的投标者也会出现在结果中，摘要为失败原因。
// 对 Trace 的写入在所有投标返回之后、于调用方 goroutine 上完成。
func (b *BiddingAgent) Invoke(ctx context.Context, task string, tr *trace.Trace) (string, error) {
	proposals := make([]agent.Proposal, len(b.bidders))

	g, gctx := errgroup.WithContext(ctx)
	if b.limit > 0 {
		g.SetLimit(b.limit)
	}
	for i, bidder := range b.bidders {
		g.Go(func() error {
			p, err := bidder.Estimate(gctx, task)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.logger.Warn("estimate failed", zap.String("bidder", bidder.Name()), zap.Error(err))
				p = agent.Proposal{Summary: fmt.Sprintf("no bid (estimate failed: %v)", err)}
			}
			if p.Agent == "" {
				p.Agent = bidder.Name()
			}
			proposals[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("bidding cancelled: %w", err)
	}

	lines := make([]string, len(proposals))
	for i, p := range proposals {
		lines[i] = p.String()
	}
	if tr != nil {
		tr.AppendScratchList(ScratchProposals, lines...)
	}

	b.logger.Debug("bids collected", zap.Int("count", len(lines)))
	return fmt.Sprintf("Collected %d proposals:\n%s", len(lines), strings.Join(lines, "\n")), nil
}

// Estimate 招标者本身不参与投标。
func (b *BiddingAgent) Estimate(context.Context, string) (agent.Proposal, error) {
	return agent.Proposal{}, agent.ErrEstimateUnsupported
}

// RecordsOwnSteps 招标结果作为普通步骤记录，便于审计。
func (b *BiddingAgent) RecordsOwnSteps() bool { return false }

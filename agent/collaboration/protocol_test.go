package collaboration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentteam/agent"
	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/testutil/fixtures"
	"github.com/BaSui01/agentteam/types"
)

func newTrace(agents ...string) *trace.Trace {
	return trace.New("build a thing", 10, trace.WithAgents(agents))
}

// ---------------------------------------------------------------------------
// New / ParsePattern
// ---------------------------------------------------------------------------

func TestParsePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Pattern
		wantErr bool
	}{
		{"sequential", PatternSequential, false},
		{"Contract-Net", PatternContractNet, false},
		{"contractnet", PatternContractNet, false},
		{"market", PatternMarketBased, false},
		{" A2A ", PatternA2A, false},
		{"", PatternNone, false},
		{"round_robin", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePattern(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.IsErrorCode(err, types.ErrProtocolUnknown))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_AllPatterns(t *testing.T) {
	t.Parallel()

	for _, p := range Patterns() {
		proto, err := New(p, Options{})
		require.NoError(t, err, p)
		assert.Equal(t, string(p), proto.Name())
	}

	_, err := New("bogus", Options{})
	require.Error(t, err)
}

func TestBase_Defaults(t *testing.T) {
	t.Parallel()

	b := NewBase("custom")
	tr := newTrace("A")
	assert.Equal(t, "custom", b.Name())
	assert.True(t, b.ShouldRun(tr))
	assert.Empty(t, b.PrepareInstruction(tr))
	assert.Empty(t, b.PrepareContext(tr))
	_, ok := b.ResolveRoute(tr, "A")
	assert.False(t, ok)
	assert.True(t, b.AcceptsRoute(tr, "anything"))
}

// ---------------------------------------------------------------------------
// Disciplines
// ---------------------------------------------------------------------------

func TestSequential_Direct(t *testing.T) {
	t.Parallel()

	s := NewSequential([]string{"Planner", "Coder"})
	tr := newTrace("Coder", "Planner")

	route, ok := s.Direct(tr)
	require.True(t, ok)
	assert.Equal(t, "Planner", route)

	tr.IncrementIteration()
	route, _ = s.Direct(tr)
	assert.Equal(t, "Coder", route)

	tr.IncrementIteration()
	route, _ = s.Direct(tr)
	assert.Equal(t, RouteFinish, route)
}

func TestSequential_FallsBackToAgentOrder(t *testing.T) {
	t.Parallel()

	s := NewSequential(nil)
	tr := newTrace("X", "Y")
	route, ok := s.Direct(tr)
	require.True(t, ok)
	assert.Equal(t, "X", route)
}

func TestHierarchical_Instruction(t *testing.T) {
	t.Parallel()

	h := NewHierarchical("Boss")
	got := h.PrepareInstruction(newTrace())
	assert.Contains(t, got, "Boss")
	assert.Contains(t, got, "full authority")
}

func TestBlackboard_ContextListsIdleAgents(t *testing.T) {
	t.Parallel()

	b := NewBlackboard()
	tr := newTrace("A", "B", "C")
	tr.AppendStep("A", "did a", trace.StepAgent)
	tr.AppendStep("Decider", "B", trace.StepDecision)

	assert.Equal(t, 0, b.HistoryWindow())
	got := b.PrepareContext(tr)
	assert.Contains(t, got, "B, C")
	assert.NotContains(t, got, "A,")

	tr.AppendStep("B", "did b", trace.StepAgent)
	tr.AppendStep("C", "did c", trace.StepAgent)
	assert.Contains(t, b.PrepareContext(tr), "every agent has contributed")
}

func TestSwarm_CountsRoutes(t *testing.T) {
	t.Parallel()

	s := NewSwarm()
	tr := newTrace("A", "B")
	s.OnRouted(tr, "A")
	s.OnRouted(tr, "A")
	s.OnRouted(tr, "B")
	s.OnRouted(tr, RouteFinish)
	s.OnRouted(tr, "Stranger")

	assert.Equal(t, 2, tr.Counter(SwarmCounterNS, "A"))
	assert.Equal(t, 1, tr.Counter(SwarmCounterNS, "B"))
	assert.Equal(t, 0, tr.Counter(SwarmCounterNS, "Stranger"))

	ctx := s.PrepareContext(tr)
	assert.Contains(t, ctx, "- A: 2")
	assert.Contains(t, ctx, "- B: 1")
}

func TestNone_NeverRuns(t *testing.T) {
	t.Parallel()
	assert.False(t, NewNone().ShouldRun(newTrace()))
}

func TestMarketBased_Instruction(t *testing.T) {
	t.Parallel()
	assert.Contains(t, NewMarketBased().PrepareInstruction(newTrace()), "cost")
}

// ---------------------------------------------------------------------------
// ContractNet
// ---------------------------------------------------------------------------

func TestContractNet_DirectsToBiddingUntilProposals(t *testing.T) {
	t.Parallel()

	c := NewContractNet("")
	assert.Equal(t, DefaultBiddingNode, c.BiddingNode())

	tr := newTrace("A", "B")
	route, ok := c.Direct(tr)
	require.True(t, ok)
	assert.Equal(t, DefaultBiddingNode, route)
	assert.Empty(t, c.PrepareContext(tr))

	tr.AppendScratchList(ScratchProposals, "A: fast", "B: cheap")
	_, ok = c.Direct(tr)
	assert.False(t, ok)

	ctx := c.PrepareContext(tr)
	assert.Contains(t, ctx, "A: fast")
	assert.Contains(t, ctx, "B: cheap")

	c.OnRouted(tr, "B")
	awarded, ok := tr.ScratchValue(ScratchAwarded)
	require.True(t, ok)
	assert.Equal(t, "B", awarded)
	assert.Contains(t, c.PrepareInstruction(tr), "awarded")
}

func TestContractNet_OnRoutedIgnoresNonCandidates(t *testing.T) {
	t.Parallel()

	c := NewContractNet("")
	tr := newTrace("A", "B")
	tr.AppendScratchList(ScratchProposals, "A: fast", "B: cheap")

	c.OnRouted(tr, "B")
	for _, target := range []string{RouteFinish, "end", DefaultBiddingNode, "Stranger"} {
		c.OnRouted(tr, target)
	}

	awarded, ok := tr.ScratchValue(ScratchAwarded)
	require.True(t, ok)
	assert.Equal(t, "B", awarded, "terminal and unknown routes keep the award")
}

func TestBiddingAgent_CollectsInRegistrationOrder(t *testing.T) {
	t.Parallel()

	slow := agent.NewFuncAgent("Slow", "slow", nil).WithEstimate(func(ctx context.Context, _ string) (agent.Proposal, error) {
		return agent.Proposal{Summary: "thorough", Cost: 0.9}, nil
	})
	bidders := []agent.Agent{
		fixtures.BiddingAgent("A", "fast", 0.2),
		fixtures.FailingAgent("Broken", errors.New("boom")).WithEstimate(func(context.Context, string) (agent.Proposal, error) {
			return agent.Proposal{}, errors.New("no capacity")
		}),
		slow,
	}

	b := NewBiddingAgent("", bidders, 2, nil)
	assert.Equal(t, DefaultBiddingNode, b.Name())

	tr := newTrace("A", "Broken", "Slow")
	out, err := b.Invoke(context.Background(), "task", tr)
	require.NoError(t, err)
	assert.Contains(t, out, "Collected 3 proposals")

	proposals := tr.ScratchList(ScratchProposals)
	require.Len(t, proposals, 3)
	assert.True(t, strings.HasPrefix(proposals[0], "A: fast"))
	assert.True(t, strings.HasPrefix(proposals[1], "Broken: no bid"))
	assert.Contains(t, proposals[1], "no capacity")
	assert.True(t, strings.HasPrefix(proposals[2], "Slow: thorough"))

	_, err = b.Estimate(context.Background(), "task")
	assert.ErrorIs(t, err, agent.ErrEstimateUnsupported)
}

func TestBiddingAgent_CancelledContext(t *testing.T) {
	t.Parallel()

	blocking := agent.NewFuncAgent("Block", "", nil).WithEstimate(func(ctx context.Context, _ string) (agent.Proposal, error) {
		<-ctx.Done()
		return agent.Proposal{}, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := newTrace("Block")
	_, err := NewBiddingAgent("Bidding", []agent.Agent{blocking}, 0, nil).Invoke(ctx, "task", tr)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tr.ScratchList(ScratchProposals))
}

// ---------------------------------------------------------------------------
// A2A
// ---------------------------------------------------------------------------

func TestFindHandoff(t *testing.T) {
	t.Parallel()

	candidates := []string{"Coder", "Reviewer", "QA-Bot"}
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"handoff", "done, handoff to reviewer please", "Reviewer", true},
		{"hand off", "I'll hand off to Coder", "Coder", true},
		{"transfer", "Transfer to QA-Bot.", "QA-Bot", true},
		{"delegate", "delegate this to coder", "Coder", true},
		{"next", "Next: Reviewer", "Reviewer", true},
		{"mention", "looks good @Reviewer", "Reviewer", true},
		{"unknown target", "handoff to Designer", "", false},
		{"no phrase", "Reviewer should look at this", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FindHandoff(tt.text, candidates)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestA2A_ResolveRoute(t *testing.T) {
	t.Parallel()

	a := NewA2A("")
	tr := newTrace("Coder", "Reviewer")

	_, ok := a.ResolveRoute(tr, "Coder")
	assert.False(t, ok, "plain names are left to the generic parser")
	assert.Contains(t, a.PrepareContext(tr), "no agent has run yet")

	tr.AppendStep("Coder", "implemented, handoff to Reviewer", trace.StepAgent)
	route, ok := a.ResolveRoute(tr, "whatever")
	require.True(t, ok)
	assert.Equal(t, "Reviewer", route)
	assert.Contains(t, a.PrepareContext(tr), "Coder requested a handoff to Reviewer")

	route, ok = a.ResolveRoute(tr, "next: Coder")
	require.True(t, ok)
	assert.Equal(t, "Coder", route, "the raw decision wins over the last output")
}

func TestA2A_FinishOverridesStaleHandoff(t *testing.T) {
	t.Parallel()

	tr := newTrace("Coder", "Reviewer")
	tr.AppendStep("Coder", "implemented, handoff to Reviewer", trace.StepAgent)

	tests := []struct {
		name   string
		a2a    *A2A
		raw    string
		want   string
		wantOK bool
	}{
		{name: "finish marker", a2a: NewA2A(""), raw: "FINISH shipped"},
		{name: "finish marker lower case", a2a: NewA2A(""), raw: "finish: shipped"},
		{name: "custom marker", a2a: NewA2A("DONE"), raw: "we are DONE"},
		{name: "named candidate", a2a: NewA2A(""), raw: "Coder should fix the tests"},
		{name: "empty decision", a2a: NewA2A(""), raw: "", want: "Reviewer", wantOK: true},
		{name: "unparseable decision", a2a: NewA2A(""), raw: "hmm", want: "Reviewer", wantOK: true},
		{name: "substring is not a mention", a2a: NewA2A(""), raw: "Coders", want: "Reviewer", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.a2a.ResolveRoute(tr, tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_A2AFinishMarker(t *testing.T) {
	t.Parallel()

	p, err := New(PatternA2A, Options{FinishMarker: "DONE"})
	require.NoError(t, err)
	tr := newTrace("Coder", "Reviewer")
	tr.AppendStep("Coder", "handoff to Reviewer", trace.StepAgent)

	_, ok := p.ResolveRoute(tr, "DONE: shipped")
	assert.False(t, ok)
}

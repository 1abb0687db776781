package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/types"
)

func echo(name string) *FuncAgent {
	return NewFuncAgent(name, name+" desc", func(_ context.Context, task string, _ *trace.Trace) (string, error) {
		return name + ":" + task, nil
	})
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()
	r, err := NewRegistry(echo("Coder"), echo("Reviewer"), echo("Tester"))
	require.NoError(t, err)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"Coder", "Reviewer", "Tester"}, r.Names())

	a, ok := r.Get("Reviewer")
	require.True(t, ok)
	assert.Equal(t, "Reviewer desc", a.Description())

	_, ok = r.Get("Ghost")
	assert.False(t, ok)

	_, err = r.Lookup("Ghost")
	assert.True(t, types.IsErrorCode(err, types.ErrAgentNotFound))
}

func TestNewRegistry_Errors(t *testing.T) {
	t.Parallel()
	_, err := NewRegistry(echo("A"), echo("A"))
	assert.True(t, types.IsErrorCode(err, types.ErrDuplicateAgent))

	_, err = NewRegistry(echo(""))
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))

	_, err = NewRegistry(nil)
	assert.Error(t, err)

	assert.Panics(t, func() { MustRegistry(echo("A"), echo("A")) })
}

func TestRegistry_NamesIsCopy(t *testing.T) {
	t.Parallel()
	r := MustRegistry(echo("A"), echo("B"))
	names := r.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, r.Names())
}

func TestRegistry_Without(t *testing.T) {
	t.Parallel()
	r := MustRegistry(echo("Mediator"), echo("A"), echo("B"))
	w := r.Without("Mediator")
	assert.Equal(t, []string{"A", "B"}, w.Names())
	assert.Equal(t, 3, r.Len())
	assert.Len(t, w.Agents(), 2)
}

func TestFuncAgent_Estimate(t *testing.T) {
	t.Parallel()
	a := echo("Coder")
	p, err := a.Estimate(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, Proposal{Agent: "Coder", Summary: "Coder desc"}, p)

	b := echo("Tester").WithEstimate(func(context.Context, string) (Proposal, error) {
		return Proposal{Summary: "cheap", Cost: 0.2}, nil
	})
	p, err = b.Estimate(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "Tester", p.Agent)
	assert.Equal(t, "Tester: cheap (cost=0.20, confidence=0.00)", p.String())

	out, err := a.Invoke(context.Background(), "t", nil)
	require.NoError(t, err)
	assert.Equal(t, "Coder:t", out)
}

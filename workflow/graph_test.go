package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	route  string
	values map[string]any
}

func (s testState) Route() string { return s.route }

func (s testState) Value(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func routeIs(name string) Guard {
	return func(s State) bool { return s.Route() == name }
}

func linearGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraphBuilder().
		AddStart("start").Link("Coder").
		AddActivity("Coder").Link("Reviewer").
		AddActivity("Reviewer").Link("end").
		AddEnd("end").
		Build()
	require.NoError(t, err)
	return g
}

func TestResolveNextNode_Linear(t *testing.T) {
	t.Parallel()
	g := linearGraph(t)
	s := testState{}

	next, err := g.ResolveNextNode("start", s)
	require.NoError(t, err)
	assert.Equal(t, "Coder", next)

	next, err = g.ResolveNextNode("Coder", s)
	require.NoError(t, err)
	assert.Equal(t, "Reviewer", next)

	next, err = g.ResolveNextNode("Reviewer", s)
	require.NoError(t, err)
	assert.Equal(t, "end", next)
	assert.True(t, g.IsEnd(next))
}

func TestResolveNextNode_Exclusive(t *testing.T) {
	t.Parallel()
	g, err := NewGraphBuilder().
		AddStart("start").Link("Mediator").
		AddActivity("Mediator").Link("gate").
		AddExclusive("gate").
		LinkIf("Coder", routeIs("Coder")).
		LinkIf("Reviewer", routeIs("Reviewer")).
		Link("end").
		AddActivity("Coder").Link("Mediator").
		AddActivity("Reviewer").Link("Mediator").
		AddEnd("end").
		Build()
	require.NoError(t, err)

	tests := []struct {
		route string
		want  string
	}{
		{"Coder", "Coder"},
		{"Reviewer", "Reviewer"},
		{"end", "end"},
		{"", "end"},
	}
	for _, tt := range tests {
		next, err := g.ResolveNextNode("gate", testState{route: tt.route})
		require.NoError(t, err)
		assert.Equal(t, tt.want, next, "route=%q", tt.route)
	}
}

func TestResolveNextNode_FirstGuardWins(t *testing.T) {
	t.Parallel()
	always := func(State) bool { return true }
	g, err := NewGraphBuilder().
		AddStart("start").Link("gate").
		AddExclusive("gate").
		LinkIf("A", always).
		LinkIf("B", always).
		Link("end").
		AddActivity("A").Link("end").
		AddActivity("B").Link("end").
		AddEnd("end").
		Build()
	require.NoError(t, err)

	next, err := g.ResolveNextNode("gate", testState{})
	require.NoError(t, err)
	assert.Equal(t, "A", next)
}

func TestResolveNextNode_NoMatchNoDefault(t *testing.T) {
	t.Parallel()
	g, err := NewGraphBuilder().
		AddStart("start").Link("gate").
		AddExclusive("gate").
		LinkIf("A", routeIs("A")).
		LinkIf("end", routeIs("end")).
		AddActivity("A").Link("end").
		AddEnd("end").
		Build()
	require.NoError(t, err)

	_, err = g.ResolveNextNode("gate", testState{route: "Z"})
	var ge *GraphError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "gate", ge.Node)
}

func TestResolveNextNode_Dynamic(t *testing.T) {
	t.Parallel()
	g, err := NewGraphBuilder().
		AddStart("start").Link("Mediator").
		AddActivity("Mediator").
		AddActivity("Coder").Link("Mediator").
		AddEnd("end").
		Build()
	require.NoError(t, err)

	next, err := g.ResolveNextNode("Mediator", testState{route: "Coder"})
	require.NoError(t, err)
	assert.Equal(t, "Coder", next)

	_, err = g.ResolveNextNode("Mediator", testState{route: "Ghost"})
	var ge *GraphError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "Ghost", ge.Target)

	_, err = g.ResolveNextNode("Mediator", testState{})
	assert.Error(t, err)
}

func TestResolveNextNode_UnknownAndEnd(t *testing.T) {
	t.Parallel()
	g := linearGraph(t)

	_, err := g.ResolveNextNode("nope", testState{})
	assert.Error(t, err)

	_, err = g.ResolveNextNode("end", testState{})
	assert.Error(t, err)
}

func TestGraph_AccessorsReturnCopies(t *testing.T) {
	t.Parallel()
	g := linearGraph(t)

	n, ok := g.Node("Coder")
	require.True(t, ok)
	n.Edges[0].To = "mutated"

	next, err := g.ResolveNextNode("Coder", testState{})
	require.NoError(t, err)
	assert.Equal(t, "Reviewer", next)

	assert.Equal(t, "start", g.Start())
	assert.Equal(t, []string{"end"}, g.Ends())
	assert.Equal(t, "end", g.TerminalNode())
	assert.Len(t, g.Activities(), 2)
	assert.Len(t, g.Nodes(), 4)
}

package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGraphBuilder_Validation(t *testing.T) {
	t.Parallel()
	never := func(State) bool { return false }

	tests := []struct {
		name  string
		build func() *GraphBuilder
		want  string
	}{
		{
			name: "no start",
			build: func() *GraphBuilder {
				return NewGraphBuilder().AddActivity("A").Link("end").AddEnd("end")
			},
			want: "exactly one start",
		},
		{
			name: "two starts",
			build: func() *GraphBuilder {
				return NewGraphBuilder().
					AddStart("s1").Link("end").
					AddStart("s2").Link("end").
					AddEnd("end")
			},
			want: "exactly one start",
		},
		{
			name: "no end",
			build: func() *GraphBuilder {
				return NewGraphBuilder().AddStart("s").Link("A").AddActivity("A").Link("s")
			},
			want: "at least one end",
		},
		{
			name: "dangling edge",
			build: func() *GraphBuilder {
				return NewGraphBuilder().AddStart("s").Link("A").AddActivity("A").Link("ghost").AddEnd("end")
			},
			want: "dangling edge",
		},
		{
			name: "unreachable activity",
			build: func() *GraphBuilder {
				return NewGraphBuilder().
					AddStart("s").Link("end").
					AddActivity("Orphan").Link("end").
					AddEnd("end")
			},
			want: "unreachable",
		},
		{
			name: "end with edge",
			build: func() *GraphBuilder {
				return NewGraphBuilder().AddStart("s").Link("end").AddEnd("end").Link("s")
			},
			want: "end must not have edges",
		},
		{
			name: "start without edge",
			build: func() *GraphBuilder {
				return NewGraphBuilder().AddStart("s").AddEnd("end")
			},
			want: "start must have exactly one unguarded edge",
		},
		{
			name: "empty exclusive",
			build: func() *GraphBuilder {
				return NewGraphBuilder().AddStart("s").Link("g").AddExclusive("g").AddEnd("end")
			},
			want: "at least one edge",
		},
		{
			name: "default not last",
			build: func() *GraphBuilder {
				return NewGraphBuilder().
					AddStart("s").Link("g").
					AddExclusive("g").Link("end").LinkIf("end", never).
					AddEnd("end")
			},
			want: "default edge must be declared last",
		},
		{
			name: "guarded activity edge",
			build: func() *GraphBuilder {
				return NewGraphBuilder().
					AddStart("s").Link("A").
					AddActivity("A").LinkIf("end", never).
					AddEnd("end")
			},
			want: "activity edge must be unguarded",
		},
		{
			name: "duplicate node",
			build: func() *GraphBuilder {
				return NewGraphBuilder().AddStart("s").Link("end").AddEnd("end").AddEnd("end")
			},
			want: "duplicate node name",
		},
		{
			name: "nil guard",
			build: func() *GraphBuilder {
				return NewGraphBuilder().AddStart("s").Link("g").AddExclusive("g").LinkIf("end", nil).Link("end").AddEnd("end")
			},
			want: "requires a guard",
		},
		{
			name: "from undeclared",
			build: func() *GraphBuilder {
				return NewGraphBuilder().AddStart("s").Link("end").AddEnd("end").From("ghost")
			},
			want: "undeclared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := tt.build().Build()
			require.Error(t, err)
			assert.Nil(t, g)
			assert.Contains(t, err.Error(), tt.want)

			var ge *GraphError
			assert.True(t, errors.As(err, &ge))
		})
	}
}

func TestGraphBuilder_FromReselects(t *testing.T) {
	t.Parallel()
	g, err := NewGraphBuilder().
		WithLogger(zap.NewNop()).
		AddStart("s").
		AddActivity("A").
		AddEnd("end").
		From("s").Link("A").
		From("A").Link("end").
		Build()
	require.NoError(t, err)

	next, err := g.ResolveNextNode("s", testState{})
	require.NoError(t, err)
	assert.Equal(t, "A", next)
}

func TestGraphBuilder_DynamicActivityReachesAll(t *testing.T) {
	t.Parallel()
	// Coder 只能经由 Mediator 的动态路由到达
	_, err := NewGraphBuilder().
		AddStart("s").Link("Mediator").
		AddActivity("Mediator").
		AddActivity("Coder").Link("Mediator").
		AddEnd("end").
		Build()
	assert.NoError(t, err)
}

func TestGraphBuilder_ActivityNamed(t *testing.T) {
	t.Parallel()
	g, err := NewGraphBuilder().
		AddStart("s").Link("decide").
		AddActivityNamed("decide", "Supervisor").Link("end").
		AddEnd("end").
		Build()
	require.NoError(t, err)

	n, ok := g.Node("decide")
	require.True(t, ok)
	assert.Equal(t, "Supervisor", n.Agent)
	assert.False(t, n.IsDynamic())
}

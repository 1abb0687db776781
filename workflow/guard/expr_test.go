package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpr_Eval(t *testing.T) {
	t.Parallel()
	vars := map[string]any{
		"route":            "Coder",
		"iteration":        3,
		"final_answer":     "",
		"terminated":       false,
		"scratch.approved": "yes",
		"result": map[string]any{
			"score": 0.9,
		},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`route == "Coder"`, true},
		{`route == 'Reviewer'`, false},
		{`route != "Reviewer"`, true},
		{`iteration >= 3`, true},
		{`iteration > 3`, false},
		{`iteration < 10 && route == "Coder"`, true},
		{`iteration > 10 || route == "Coder"`, true},
		{`final_answer != ""`, false},
		{`final_answer == ""`, true},
		{`!terminated`, true},
		{`terminated == false`, true},
		{`scratch.approved == "yes"`, true},
		{`!(scratch.approved == "yes")`, false},
		{`result.score > 0.8`, true},
		{`missing == nil`, true},
		{`missing`, false},
		{`iteration > -1`, true},
		{`(route == "A" || route == "Coder") && iteration <= 3`, true},
		{`true`, true},
		{`false || false`, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()
			e, err := Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Eval(MapLookup(vars)))
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()
	for _, src := range []string{
		"",
		`route == `,
		`(route == "A"`,
		`route == "A" extra`,
		`"unterminated`,
		`route # 1`,
	} {
		_, err := Compile(src)
		assert.Error(t, err, "expr %q", src)
	}
}

func TestMustCompile_Panics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { MustCompile("((") })
	assert.NotPanics(t, func() { MustCompile(`route == "x"`) })
}

func TestExpr_Variables(t *testing.T) {
	t.Parallel()
	e := MustCompile(`route == "A" && (iteration > 2 || route != scratch.x)`)
	assert.Equal(t, []string{"route", "iteration", "scratch.x"}, e.Variables())
	assert.Equal(t, `route == "A" && (iteration > 2 || route != scratch.x)`, e.String())
}

func TestExpr_NilLookup(t *testing.T) {
	t.Parallel()
	assert.False(t, MustCompile("x").Eval(nil))
	assert.True(t, MustCompile("!x").Eval(nil))
}

type fakeState struct {
	route  string
	values map[string]any
}

func (s fakeState) Route() string { return s.route }

func (s fakeState) Value(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func TestGuard_ReadsState(t *testing.T) {
	t.Parallel()
	g, label, err := Parse(`route == "Reviewer" && iteration < 5`)
	require.NoError(t, err)
	assert.Equal(t, `route == "Reviewer" && iteration < 5`, label)

	assert.True(t, g(fakeState{route: "Reviewer", values: map[string]any{"iteration": 1}}))
	assert.False(t, g(fakeState{route: "Coder", values: map[string]any{"iteration": 1}}))
	assert.False(t, g(fakeState{route: "Reviewer", values: map[string]any{"iteration": 7}}))

	_, _, err = Parse("&&")
	assert.Error(t, err)
}

package workflow

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// 排他网关总是选择声明顺序中第一个为真的 guard，全部为假时走默认边。
func TestProperty_ExclusiveFirstMatchWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("first true guard wins", prop.ForAll(
		func(outcomes []bool) bool {
			b := NewGraphBuilder().AddStart("s").Link("gate").AddExclusive("gate")
			for i, ok := range outcomes {
				ok := ok
				b.LinkIf(fmt.Sprintf("n%d", i), func(State) bool { return ok })
			}
			b.Link("end")
			for i := range outcomes {
				b.AddActivity(fmt.Sprintf("n%d", i)).Link("end")
			}
			g, err := b.AddEnd("end").Build()
			if err != nil {
				return false
			}

			want := "end"
			for i, ok := range outcomes {
				if ok {
					want = fmt.Sprintf("n%d", i)
					break
				}
			}

			got, err := g.ResolveNextNode("gate", testState{})
			return err == nil && got == want
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

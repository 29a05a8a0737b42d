package unreachable

import (
	"context"
	"go/token"
	"testing"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/check"
	"github.com/cs-au-dk/symex/analysis/symex"
	"github.com/cs-au-dk/symex/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoke(name string, pos token.Pos) cfg.Operation {
	inv := &cfg.Invocation{Method: name}
	inv.SetPos(pos)
	return inv
}

// islands builds B1 -> B4 -> exit, leaving B2 -> B3 and B5 unreachable.
func islands(t *testing.T) *cfg.Graph {
	b := cfg.NewBuilder("islands")
	b1, b2, b3, b4, b5 := b.Block(), b.Block(), b.Block(), b.Block(), b.Block()
	b.Add(b1, invoke("live", 1))
	b.Jump(b1, b4, cfg.Regular)
	b.Add(b2, invoke("dead", 2))
	b.Add(b3, invoke("dead", 3))
	b.Jump(b3, b.Exit(), cfg.Regular)
	b.Add(b4, invoke("live", 4))
	b.Jump(b4, b.Exit(), cfg.Regular)
	b.Add(b5, invoke("dead", 5))

	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestIslands(t *testing.T) {
	g := islands(t)

	var ordinals [][]int
	for _, island := range Islands(g) {
		var ords []int
		for _, blk := range island {
			ords = append(ords, blk.Ordinal())
		}
		ordinals = append(ordinals, ords)
	}
	assert.Equal(t, [][]int{{2, 3}, {5}}, ordinals)

	assert.Empty(t, Islands(testutil.Chain(3)))
}

func TestFindings(t *testing.T) {
	res, err := symex.New(islands(t), []check.Check{New()}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Findings, 2)
	assert.Equal(t, token.Pos(2), res.Findings[0].Pos)
	assert.Equal(t, []token.Pos{3}, res.Findings[0].Secondary)
	assert.Equal(t, token.Pos(5), res.Findings[1].Pos)
	for _, f := range res.Findings {
		assert.Equal(t, Rule, f.Rule)
	}
}

func TestEmptyIslandsAreSilent(t *testing.T) {
	b := cfg.NewBuilder("empty")
	b1 := b.Block()
	b.Add(b1, invoke("live", 1))
	b.Return(b1)
	b.Block()
	g, err := b.Build()
	require.NoError(t, err)

	c := New()
	assert.False(t, c.ShouldExecute(g))
	assert.Len(t, Islands(g), 1)
}

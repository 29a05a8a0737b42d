package nullderef

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

var _ check.PartialResults = New()

func findings(t *testing.T, g *cfg.Graph) []check.Finding {
	t.Helper()
	res, err := symex.New(g, []check.Check{New()}).Run(context.Background())
	require.NoError(t, err)
	return res.Findings
}

// guarded builds `if p <op> nil { x = p.f }`.
func guarded(op cfg.BinaryOp) *cfg.Graph {
	p := cfg.NewVar("p", cfg.SymbolParameter)
	x := cfg.NewVar("x", cfg.SymbolLocal)
	f := cfg.NewVar("f", cfg.SymbolField)

	b := cfg.NewBuilder("guarded")
	head, then := b.Block(), b.Block()
	b.Branch(head, &cfg.Binary{
		Op:    op,
		Left:  &cfg.ParameterReference{Parameter: p},
		Right: &cfg.Literal{},
	}, then, b.Exit())

	ref := &cfg.FieldReference{Instance: &cfg.ParameterReference{Parameter: p}, Field: f}
	ref.SetPos(token.Pos(42))
	b.Add(then, &cfg.Assignment{Target: &cfg.LocalReference{Local: x}, Value: ref})

	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

func TestDereferenceOfNil(t *testing.T) {
	fs := findings(t, guarded(cfg.Equal))
	require.Len(t, fs, 1)
	assert.Equal(t, Rule, fs[0].Rule)
	assert.Equal(t, token.Pos(42), fs[0].Pos)
	assert.Contains(t, fs[0].Message, "p")
}

func TestDereferenceOfNonNil(t *testing.T) {
	assert.Empty(t, findings(t, guarded(cfg.NotEqual)))
}

func TestDereferenceImpliesNonNil(t *testing.T) {
	p := cfg.NewVar("p", cfg.SymbolParameter)
	f := cfg.NewVar("f", cfg.SymbolField)

	// p.f; if p == nil { p.f }
	b := cfg.NewBuilder("implied")
	head, then := b.Block(), b.Block()
	b.Add(head, &cfg.FieldReference{Instance: &cfg.ParameterReference{Parameter: p}, Field: f})
	b.Branch(head, &cfg.IsNull{Operand: &cfg.ParameterReference{Parameter: p}}, then, b.Exit())
	b.Add(then, &cfg.Invocation{Method: "M", Receiver: &cfg.ParameterReference{Parameter: p}})
	g, err := b.Build()
	require.NoError(t, err)

	res, err := symex.New(g, []check.Check{New()}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.False(t, res.Visited(then.Ordinal()), "p was dereferenced, so it is not nil")
}

func TestShortCircuitGuard(t *testing.T) {
	p := cfg.NewVar("p", cfg.SymbolParameter)
	f := cfg.NewVar("f", cfg.SymbolField)
	ref := func() cfg.Operation { return &cfg.ParameterReference{Parameter: p} }

	// if p == nil { if p != nil && p.f { m() } }
	b := cfg.NewBuilder("short")
	head, inner, then := b.Block(), b.Block(), b.Block()
	b.Branch(head, &cfg.Binary{Op: cfg.Equal, Left: ref(), Right: &cfg.Literal{}}, inner, b.Exit())
	b.Branch(inner, &cfg.Logical{
		And:   true,
		Left:  &cfg.Binary{Op: cfg.NotEqual, Left: ref(), Right: &cfg.Literal{}},
		Right: &cfg.FieldReference{Instance: ref(), Field: f},
	}, then, b.Exit())
	b.Add(then, &cfg.Invocation{Method: "m"})
	g, err := b.Build()
	require.NoError(t, err)

	res, err := symex.New(g, []check.Check{New()}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.True(t, res.Visited(inner.Ordinal()))
	assert.False(t, res.Visited(then.Ordinal()))
}

func TestFindingsSurviveExhaustion(t *testing.T) {
	p := cfg.NewVar("p", cfg.SymbolParameter)
	q := cfg.NewVar("q", cfg.SymbolParameter)
	f := cfg.NewVar("f", cfg.SymbolField)

	// if p == nil { p.f } else { if q {} else {}; m(q) }
	b := cfg.NewBuilder("exhausted")
	head, then, fork, a, c, join := b.Block(), b.Block(), b.Block(), b.Block(), b.Block(), b.Block()
	b.Branch(head, &cfg.IsNull{Operand: &cfg.ParameterReference{Parameter: p}}, then, fork)
	b.Add(then, &cfg.FieldReference{Instance: &cfg.ParameterReference{Parameter: p}, Field: f})
	b.Jump(then, b.Exit(), cfg.Regular)
	b.Branch(fork, &cfg.ParameterReference{Parameter: q}, a, c)
	b.Jump(a, join, cfg.Regular)
	b.Jump(c, join, cfg.Regular)
	b.Add(join, &cfg.Invocation{Method: "m", Args: []cfg.Operation{&cfg.ParameterReference{Parameter: q}}})
	g, err := b.Build()
	require.NoError(t, err)

	res, err := symex.New(g, []check.Check{New()}, symex.WithMaxStatesPerBlock(1)).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Len(t, res.Findings, 1)
}

func TestShouldExecute(t *testing.T) {
	assert.True(t, New().ShouldExecute(guarded(cfg.Equal)))
	assert.False(t, New().ShouldExecute(testutil.Chain(2)))
}

const source = `package main

type T struct{ f int }

func bad(p *T) int {
	if p == nil {
		return p.f
	}
	return 0
}

func good(p *T) int {
	if p == nil {
		return 0
	}
	return p.f
}

func loop(n int) int {
	var p *T
	s := 0
	for i := 0; i < n; i++ {
		s += i
	}
	return s + p.f
}

func main() {}
`

func TestFromSource(t *testing.T) {
	tests := []struct {
		fun      string
		findings int
	}{
		{"bad", 1},
		{"good", 0},
		{"loop", 1},
	}

	for _, test := range tests {
		g := testutil.GraphOf(t, source, test.fun)
		assert.Len(t, findings(t, g), test.findings, "%s:\n%s", test.fun, g)
	}
}

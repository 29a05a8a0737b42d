package symex

import (
	"context"
	"testing"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/check"
	C "github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/cs-au-dk/symex/analysis/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func param(sym cfg.Symbol) cfg.Operation { return &cfg.ParameterReference{Parameter: sym} }

func lit(v any) cfg.Operation { return &cfg.Literal{Value: v} }

func runGraph(t *testing.T, g *cfg.Graph, checks ...check.Check) Result {
	t.Helper()
	res, err := New(g, checks).Run(context.Background())
	require.NoError(t, err)
	return res
}

// nested builds `if <outer> { if <inner> { A } else { B } } else { C }`.
func nested(outer, inner cfg.Operation) (g *cfg.Graph, A, B, Cb *cfg.Block) {
	b := cfg.NewBuilder("nested")
	head, second := b.Block(), b.Block()
	A, B, Cb = b.Block(), b.Block(), b.Block()
	b.Branch(head, outer, second, Cb)
	b.Branch(second, inner, A, B)
	for _, blk := range []*cfg.Block{A, B, Cb} {
		b.Add(blk, &cfg.Invocation{Method: "m"})
		b.Jump(blk, b.Exit(), cfg.Regular)
	}
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return
}

func TestRangeRefinement(t *testing.T) {
	p := cfg.NewVar("p", cfg.SymbolParameter)
	g, A, B, Cb := nested(
		&cfg.Binary{Op: cfg.Less, Left: param(p), Right: lit(10)},
		&cfg.Binary{Op: cfg.Greater, Left: param(p), Right: lit(20)},
	)

	res := runGraph(t, g)
	assert.False(t, res.Visited(A.Ordinal()), "p < 10 && p > 20 is infeasible")
	assert.True(t, res.Visited(B.Ordinal()))
	assert.True(t, res.Visited(Cb.Ordinal()))
}

func TestConstantCondition(t *testing.T) {
	x := cfg.NewVar("x", cfg.SymbolLocal)
	b := cfg.NewBuilder("constant")
	head, then, els := b.Block(), b.Block(), b.Block()
	b.Add(head, &cfg.Assignment{Target: &cfg.LocalReference{Local: x}, Value: lit(int64(5))})
	b.Branch(head, &cfg.Binary{
		Op:    cfg.Less,
		Left:  &cfg.LocalReference{Local: x},
		Right: &cfg.Binary{Op: cfg.Add, Left: lit(2), Right: lit(4)},
	}, then, els)
	b.Jump(then, b.Exit(), cfg.Regular)
	g, err := b.Build()
	require.NoError(t, err)

	res := runGraph(t, g)
	assert.True(t, res.Visited(then.Ordinal()))
	assert.False(t, res.Visited(els.Ordinal()), "5 < 2 + 4 always holds")
}

func TestNullRefinement(t *testing.T) {
	p := cfg.NewVar("p", cfg.SymbolParameter)
	g, A, B, _ := nested(
		&cfg.Binary{Op: cfg.Equal, Left: param(p), Right: lit(nil)},
		&cfg.IsNull{Operand: param(p)},
	)

	res := runGraph(t, g)
	assert.True(t, res.Visited(A.Ordinal()))
	assert.False(t, res.Visited(B.Ordinal()), "p is known to be nil")
}

func TestNotPropagation(t *testing.T) {
	p := cfg.NewVar("p", cfg.SymbolParameter)
	g, A, B, _ := nested(
		&cfg.Unary{Op: cfg.Not, Operand: param(p)},
		param(p),
	)

	res := runGraph(t, g)
	assert.False(t, res.Visited(A.Ordinal()), "p is false under !p")
	assert.True(t, res.Visited(B.Ordinal()))
}

func TestCreatedObjectsAreNotNull(t *testing.T) {
	g, A, B, Cb := nested(
		&cfg.IsNull{Operand: &cfg.ObjectCreation{Type: "T"}},
		lit(true),
	)

	res := runGraph(t, g)
	assert.False(t, res.Visited(A.Ordinal()))
	assert.False(t, res.Visited(B.Ordinal()))
	assert.True(t, res.Visited(Cb.Ordinal()))
}

type logicalForker struct {
	check.Base
	fork    bool
	forks   int
	learned []C.Constraint
	p       cfg.Symbol
}

func (*logicalForker) Name() string         { return "logical" }
func (l *logicalForker) ForksLogical() bool { return l.fork }

func (l *logicalForker) PostProcess(ctx *check.OperationContext) []state.ProgramState {
	if _, ok := ctx.Operation.(*cfg.Logical); ok {
		l.forks++
	}
	return []state.ProgramState{ctx.State}
}

func (l *logicalForker) ConditionEvaluated(ctx *check.ConditionContext) []state.ProgramState {
	if ctx.Truth {
		c, _ := ctx.State.SymbolConstraint(l.p, C.KindBool)
		l.learned = append(l.learned, c)
	}
	return []state.ProgramState{ctx.State}
}

func TestLogicalFork(t *testing.T) {
	p := cfg.NewVar("p", cfg.SymbolParameter)
	q := cfg.NewVar("q", cfg.SymbolParameter)
	cond := &cfg.Logical{And: true, Left: param(p), Right: param(q)}
	g, A, B, Cb := nested(cond, param(q))

	forker := &logicalForker{fork: true, p: p}
	res := runGraph(t, g, forker)
	assert.Equal(t, 2, forker.forks, "one post-process per outcome")
	assert.True(t, res.Visited(A.Ordinal()))
	assert.False(t, res.Visited(B.Ordinal()), "q holds under p && q")
	assert.True(t, res.Visited(Cb.Ordinal()))
	assert.Contains(t, forker.learned, C.Constraint(C.BoolTrue))

	// Without forks the outcome stays unknown until the branch is taken.
	quiet := &logicalForker{p: p}
	res = runGraph(t, g, quiet)
	assert.Equal(t, 1, quiet.forks)
	assert.False(t, res.Visited(B.Ordinal()), "the taken branch still implies q")
}

func TestShortCircuitSkipsRight(t *testing.T) {
	never := func() cfg.Operation { return &cfg.Invocation{Method: "never"} }
	tests := map[string]struct {
		op    *cfg.Logical
		calls []string
	}{
		"false and":  {&cfg.Logical{And: true, Left: lit(false), Right: never()}, []string{"after"}},
		"true or":    {&cfg.Logical{Left: lit(true), Right: never()}, []string{"after"}},
		"true and":   {&cfg.Logical{And: true, Left: lit(true), Right: never()}, []string{"never", "after"}},
		"false or":   {&cfg.Logical{Left: lit(false), Right: never()}, []string{"never", "after"}},
		"unknown or": {&cfg.Logical{Left: param(cfg.NewVar("p", cfg.SymbolParameter)), Right: never()}, []string{"never", "after"}},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			b := cfg.NewBuilder(name)
			blk := b.Block()
			b.Add(blk, test.op)
			b.Add(blk, &cfg.Invocation{Method: "after"})
			g, err := b.Build()
			require.NoError(t, err)

			rec := &recorder{name: "rec"}
			runGraph(t, g, rec)
			assert.Equal(t, test.calls, rec.calls)
		})
	}
}

func TestShortCircuitForkSkipsRight(t *testing.T) {
	p := cfg.NewVar("p", cfg.SymbolParameter)
	b := cfg.NewBuilder("fork")
	blk := b.Block()
	b.Add(blk, &cfg.Logical{And: true, Left: param(p), Right: &cfg.Invocation{Method: "right"}})
	b.Add(blk, &cfg.Invocation{Method: "after"})
	g, err := b.Build()
	require.NoError(t, err)

	forker := &logicalForker{fork: true, p: p}
	rec := &recorder{name: "rec"}
	runGraph(t, g, forker, rec)
	assert.Equal(t, 2, forker.forks)
	assert.ElementsMatch(t, []string{"right", "after", "after"}, rec.calls)
}

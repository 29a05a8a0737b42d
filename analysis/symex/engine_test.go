package symex

import (
	"context"
	"testing"
	"time"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/check"
	C "github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/cs-au-dk/symex/analysis/state"
	"github.com/cs-au-dk/symex/testutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder records the invocations it observes and reports one finding per
// run.
type recorder struct {
	check.Base
	name       string
	partial    bool
	calls      []string
	conditions []bool
	exits      int
	completed  bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) PostProcess(ctx *check.OperationContext) []state.ProgramState {
	if inv, ok := ctx.Operation.(*cfg.Invocation); ok {
		r.calls = append(r.calls, inv.Method)
	}
	return []state.ProgramState{ctx.State}
}

func (r *recorder) ConditionEvaluated(ctx *check.ConditionContext) []state.ProgramState {
	r.conditions = append(r.conditions, ctx.Truth)
	return []state.ProgramState{ctx.State}
}

func (r *recorder) ExitReached(*check.ExitContext) { r.exits++ }
func (r *recorder) ExecutionCompleted()            { r.completed = true }

func (r *recorder) Findings() []check.Finding {
	return []check.Finding{{Rule: r.name, Message: "done"}}
}

type partialRecorder struct{ *recorder }

func (partialRecorder) ReportsPartialResults() {}

type faulty struct {
	check.Base
}

func (faulty) Name() string { return "faulty" }

func (faulty) PostProcess(*check.OperationContext) []state.ProgramState {
	panic("faulty check")
}

func TestTermination(t *testing.T) {
	g, _ := testutil.Loop(1000)
	rec := &recorder{name: "rec"}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := New(g, []check.Check{rec}).Run(ctx)
	require.NoError(t, err)
	assert.False(t, res.Exhausted)
	assert.True(t, res.Visited(g.Exit().Ordinal()))
	assert.True(t, rec.completed)
	assert.Positive(t, res.PrunedRevisits, "loop states must be merged")
}

func TestTerminationWithBudget(t *testing.T) {
	g, _ := testutil.Loop(1000)
	res, err := New(g, nil, WithMaxSteps(100)).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 100, res.Steps)
}

func TestInfeasiblePathPruning(t *testing.T) {
	tests := []struct {
		cond       C.Constraint
		cVisited   bool
		dVisited   bool
		conditions []bool
	}{
		{C.BoolTrue, true, false, []bool{true}},
		{C.BoolFalse, false, true, []bool{false}},
		{nil, true, true, []bool{true, false}},
	}

	for _, test := range tests {
		g, cond, B, Cb, D := testutil.Fork()
		initial := state.Empty()
		if test.cond != nil {
			initial = initial.SetSymbolConstraint(cond, test.cond)
		}
		rec := &recorder{name: "rec"}

		res, err := New(g, []check.Check{rec}, WithInitialState(initial)).Run(context.Background())
		require.NoError(t, err)

		assert.True(t, res.Visited(B.Ordinal()))
		assert.Equal(t, test.cVisited, res.Visited(Cb.Ordinal()), "C visited with %v", test.cond)
		assert.Equal(t, test.dVisited, res.Visited(D.Ordinal()), "D visited with %v", test.cond)
		assert.ElementsMatch(t, test.conditions, rec.conditions)
	}
}

func TestRuleCheckIsolation(t *testing.T) {
	g := testutil.Chain(3)
	rec := &recorder{name: "rec"}

	res, err := New(g, []check.Check{faulty{}, rec}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"faulty"}, res.Failed)
	assert.True(t, rec.completed)
	assert.Equal(t, []string{"f0", "f1", "f2"}, rec.calls)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "rec", res.Findings[0].Rule)
}

func TestIsolationOfFail(t *testing.T) {
	g := testutil.Chain(1)
	rec := &recorder{name: "rec"}
	failing := &failOnExit{}

	res, err := New(g, []check.Check{failing, rec}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"failing"}, res.Failed)
	assert.Equal(t, 1, rec.exits)
	require.Len(t, res.Findings, 1)
}

type failOnExit struct{ check.Base }

func (*failOnExit) Name() string { return "failing" }

func (*failOnExit) ExitReached(*check.ExitContext) { check.Fail("unexpected exit") }

func (*failOnExit) Findings() []check.Finding {
	return []check.Finding{{Rule: "failing"}}
}

func TestCancellation(t *testing.T) {
	g := testutil.Chain(5)
	rec := &recorder{name: "rec"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(g, []check.Check{rec}).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.True(t, res.Cancelled)
	assert.Empty(t, res.Findings)
	assert.False(t, rec.completed)
}

func TestExhaustionPartialResults(t *testing.T) {
	g := testutil.Chain(50)
	full := &recorder{name: "full"}
	partial := partialRecorder{&recorder{name: "partial"}}

	res, err := New(g, []check.Check{full, partial}, WithMaxSteps(5)).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.True(t, full.completed)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "partial", res.Findings[0].Rule)
}

type never struct{ check.Base }

func (never) Name() string                  { return "never" }
func (never) ShouldExecute(*cfg.Graph) bool { return false }

func TestSkipped(t *testing.T) {
	res, err := New(testutil.Chain(2), []check.Check{never{}}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Steps)
}

func TestStrategies(t *testing.T) {
	for _, strategy := range []Strategy{DepthFirst, ByOrdinal} {
		g, _, _, _, _ := testutil.Fork()
		rec := &recorder{name: "rec"}
		res, err := New(g, []check.Check{rec}, WithStrategy(strategy)).Run(context.Background())
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"C", "D"}, rec.calls)
		assert.Equal(t, 2, rec.exits)
		assert.Equal(t, 5, res.VisitedBlocks())
	}
}

func TestFinallyContinuation(t *testing.T) {
	b := cfg.NewBuilder("finally")
	try, finally := b.Block(), b.Block()
	b.Add(try, &cfg.Invocation{Method: "work"})
	b.Return(try)
	b.Add(finally, &cfg.Invocation{Method: "Unlock"})
	b.EndFinally(finally)
	b.Region(cfg.RegionTryAndFinally, try, finally)
	b.Region(cfg.RegionTry, try, try)
	b.Region(cfg.RegionFinally, finally, finally)
	g, err := b.Build()
	require.NoError(t, err)

	rec := &recorder{name: "rec"}
	_, err = New(g, []check.Check{rec}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "Unlock"}, rec.calls)
	assert.Equal(t, 1, rec.exits)
}

func TestCatchHandlers(t *testing.T) {
	b := cfg.NewBuilder("catch")
	try, catch, after := b.Block(), b.Block(), b.Block()
	b.Add(try, &cfg.Invocation{Method: "risky"})
	b.Jump(try, after, cfg.Regular)
	b.Add(catch, &cfg.Invocation{Method: "handle"})
	b.Add(after, &cfg.Invocation{Method: "after"})
	b.Region(cfg.RegionTryAndCatch, try, catch)
	b.Region(cfg.RegionTry, try, try)
	b.Region(cfg.RegionCatch, catch, catch)
	g, err := b.Build()
	require.NoError(t, err)

	rec := &recorder{name: "rec"}
	res, err := New(g, []check.Check{rec}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Visited(catch.Ordinal()))
	assert.Contains(t, rec.calls, "handle")
	assert.Equal(t, 1, rec.exits, "both paths reach the join block in the same state")
	assert.Equal(t, 1, res.PrunedRevisits)
}

func TestThrowReachesExit(t *testing.T) {
	b := cfg.NewBuilder("throw")
	blk, dead := b.Block(), b.Block()
	b.Add(blk, &cfg.Throw{Exception: &cfg.ObjectCreation{Type: "error"}})
	b.Throw(blk)
	b.Add(dead, &cfg.Invocation{Method: "dead"})
	g, err := b.Build()
	require.NoError(t, err)

	rec := &recorder{name: "rec"}
	res, err := New(g, []check.Check{rec}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.exits)
	assert.False(t, res.Visited(dead.Ordinal()))
}

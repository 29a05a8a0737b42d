package state

import (
	"testing"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImmutability(t *testing.T) {
	x := cfg.NewVar("x", cfg.SymbolLocal)
	lit := &cfg.Literal{Value: 1}

	s0 := Empty()
	s1 := s0.SetSymbolConstraint(x, constraint.NotNull)
	s2 := s1.SetOperationConstraint(lit, constraint.Exact(1))
	s3 := s2.Push(NewValue())

	_, ok := s0.SymbolValue(x)
	assert.False(t, ok, "s0 must not observe the binding of x")
	_, ok = s1.OperationValue(lit)
	assert.False(t, ok, "s1 must not observe the operation value")
	assert.Equal(t, 0, s2.StackDepth())
	assert.Equal(t, 1, s3.StackDepth())

	s4, _ := s3.Pop()
	assert.Equal(t, 0, s4.StackDepth())
	assert.Equal(t, 1, s3.StackDepth(), "pop must not modify the original")

	s5 := s1.SetSymbolConstraint(x, constraint.Null)
	c, _ := s1.SymbolConstraint(x, constraint.KindNull)
	assert.Equal(t, constraint.NotNull, c)
	c, _ = s5.SymbolConstraint(x, constraint.KindNull)
	assert.Equal(t, constraint.Null, c)
}

func TestExclusivity(t *testing.T) {
	v := NewValue()
	s := Empty().
		SetConstraint(v, constraint.BoolTrue).
		SetConstraint(v, constraint.BoolFalse)

	c, ok := s.Constraint(v, constraint.KindBool)
	require.True(t, ok)
	assert.Equal(t, constraint.BoolFalse, c)
	assert.Equal(t, 1, s.Constraints(v).Len())

	s = s.SetConstraint(v, constraint.NotNull)
	assert.Equal(t, 2, s.Constraints(v).Len())
}

func TestLearn(t *testing.T) {
	v := NewValue()
	s, ok := Empty().Learn(v, constraint.BoolTrue)
	require.True(t, ok)

	_, ok = s.Learn(v, constraint.BoolFalse)
	assert.False(t, ok, "learning a contradiction is infeasible")

	_, ok = s.Learn(v, constraint.BoolTrue)
	assert.True(t, ok)

	n := NewValue()
	s, ok = s.Learn(n, constraint.Between(0, 10))
	require.True(t, ok)
	s, ok = s.Learn(n, constraint.Between(5, 20))
	require.True(t, ok)
	c, _ := s.Constraint(n, constraint.KindRange)
	assert.True(t, c.Equal(constraint.Between(5, 10)), "got %s", c)

	_, ok = s.Learn(n, constraint.Exact(11))
	assert.False(t, ok)
}

func TestStack(t *testing.T) {
	a, b := NewValue(), NewValue()
	s := Empty().Push(a).Push(b)

	assert.Equal(t, b, s.Peek())
	s, v := s.Pop()
	assert.Equal(t, b, v)
	s, v = s.Pop()
	assert.Equal(t, a, v)
	s, v = s.Pop()
	assert.Nil(t, v)
	assert.Nil(t, s.Peek())
	assert.Equal(t, 0, s.StackDepth())
}

func TestResolveCaptureAndUnwrapConversion(t *testing.T) {
	x := cfg.NewVar("x", cfg.SymbolLocal)
	ref := &cfg.LocalReference{Local: x}
	capture := &cfg.FlowCapture{ID: 1, Value: ref}

	s := Empty().SetCapture(1, capture)
	op := &cfg.Conversion{
		Operand:  &cfg.FlowCaptureReference{ID: 1},
		Implicit: true,
	}
	assert.Same(t, ref, s.ResolveCaptureAndUnwrapConversion(op))

	explicit := &cfg.Conversion{Operand: ref}
	assert.Same(t, explicit, s.ResolveCaptureAndUnwrapConversion(explicit))

	missing := &cfg.FlowCaptureReference{ID: 2}
	assert.Same(t, missing, s.ResolveCaptureAndUnwrapConversion(missing))

	cyclic := Empty().SetCapture(3, &cfg.FlowCaptureReference{ID: 3})
	assert.NotNil(t, cyclic.ResolveCaptureAndUnwrapConversion(&cfg.FlowCaptureReference{ID: 3}))
}

func TestPreserve(t *testing.T) {
	x := cfg.NewVar("x", cfg.SymbolLocal)
	f := cfg.NewVar("f", cfg.SymbolField)
	g := cfg.NewVar("g", cfg.SymbolField)

	s := Empty().
		SetSymbolConstraint(x, constraint.NotNull).
		SetSymbolConstraint(f, constraint.LockHeld).
		SetSymbolConstraint(g, constraint.LockHeld).
		Preserve(f)

	reset := s.ResetFields()
	_, ok := reset.SymbolValue(g)
	assert.False(t, ok, "non-preserved fields are reset")
	_, ok = reset.SymbolValue(f)
	assert.True(t, ok, "preserved fields survive")
	_, ok = reset.SymbolValue(x)
	assert.True(t, ok, "locals are not fields")

	forgot := s.ForgetSymbols(func(cfg.Symbol) bool { return false })
	_, ok = forgot.SymbolValue(x)
	assert.False(t, ok)
	c, ok := forgot.SymbolConstraint(f, constraint.KindLock)
	assert.True(t, ok)
	assert.Equal(t, constraint.LockHeld, c)

	cleared := forgot.ClearPreserved()
	assert.False(t, cleared.IsPreserved(f))
	assert.True(t, forgot.IsPreserved(f))
}

func TestForgetOperations(t *testing.T) {
	kept := &cfg.Literal{Value: true}
	dropped := &cfg.Literal{Value: false}

	s := Empty().
		SetOperationConstraint(kept, constraint.BoolTrue).
		SetOperationConstraint(dropped, constraint.BoolFalse).
		SetCapture(0, kept)
	v, _ := s.OperationValue(dropped)

	s = s.ForgetOperations()
	_, ok := s.OperationValue(dropped)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Constraints(v).Len(), "unreferenced constraints are collected")
	c, ok := s.OperationConstraint(kept, constraint.KindBool)
	assert.True(t, ok)
	assert.Equal(t, constraint.BoolTrue, c)
}

func TestDigest(t *testing.T) {
	x := cfg.NewVar("x", cfg.SymbolLocal)
	y := cfg.NewVar("y", cfg.SymbolLocal)
	dead := cfg.NewVar("dead", cfg.SymbolLocal)
	live := func(sym cfg.Symbol) bool { return sym != dead }

	v1, v2 := NewValue(), NewValue()
	s1 := Empty().SetSymbolValue(x, v1).SetConstraint(v1, constraint.NotNull).
		SetSymbolConstraint(dead, constraint.BoolTrue)
	s2 := Empty().SetSymbolValue(x, v2).SetConstraint(v2, constraint.NotNull).
		SetSymbolConstraint(dead, constraint.BoolFalse)

	assert.True(t, s1.Equal(s2, live), "value identity and dead symbols are ignored")
	assert.Equal(t, s1.Digest(live).Hash(), s2.Digest(live).Hash())
	assert.False(t, s1.Equal(s2, nil))

	aliased := s1.SetSymbolValue(y, v1)
	split := s1.SetSymbolValue(y, NewValue()).SetSymbolConstraint(y, constraint.NotNull)
	assert.False(t, aliased.Equal(split, live), "alias structure is retained")

	pushed := s1.Push(v1)
	assert.False(t, pushed.Equal(s1, live))
}

func TestString(t *testing.T) {
	x := cfg.NewVar("x", cfg.SymbolLocal)
	y := cfg.NewVar("y", cfg.SymbolLocal)
	v := NewValue()
	s := Empty().
		SetSymbolValue(y, v).
		SetSymbolValue(x, v).
		SetConstraint(v, constraint.NotNull).
		Push(NewValue()).
		Preserve(x)

	expected := "x = #0 {NotNull}\n" +
		"y = #0 {NotNull}\n" +
		"stack: [#1 {}]\n" +
		"preserved: x\n"
	assert.Equal(t, expected, s.String())
}

package cfg_test

import (
	"testing"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/testutil"
	"github.com/cs-au-dk/symex/utils/graph"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const source = `package main

type Mutex struct{ held bool }

func (m *Mutex) Lock()   { m.held = true }
func (m *Mutex) Unlock() { m.held = false }

type T struct{ f int }

func deref(p *T) int {
	if p == nil {
		return 0
	}
	return p.f
}

func guarded(m *Mutex) {
	m.Lock()
	defer m.Unlock()
}

func maybe(m *Mutex, c bool) {
	if c {
		defer m.Unlock()
	}
}

func closure() func() int {
	x := 1
	return func() int {
		x++
		return x
	}
}

func loop(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		s += i
	}
	return s
}

func external()

func main() {}
`

func find(g *cfg.Graph, pred func(cfg.Operation) bool) (res []cfg.Operation) {
	for _, op := range g.Operations() {
		if pred(op) {
			res = append(res, op)
		}
	}
	return
}

func TestFromSSACondition(t *testing.T) {
	g := testutil.GraphOf(t, source, "deref")

	conds := g.FindAll(func(b *cfg.Block) bool { return b.IsConditional() })
	require.Len(t, conds, 1, "%s", g)

	bin, ok := conds[0].BranchValue().(*cfg.Binary)
	require.True(t, ok, "Comparison should be inlined in the branch value, got %s", conds[0].BranchValue())
	assert.Equal(t, cfg.Equal, bin.Op)
	assert.Equal(t, cfg.OpParameterReference, bin.Left.Kind())
	lit, ok := bin.Right.(*cfg.Literal)
	require.True(t, ok)
	assert.Nil(t, lit.Value)

	loads := find(g, func(op cfg.Operation) bool {
		ref, ok := op.(*cfg.FieldReference)
		return ok && ref.Field.Name() == "f" && ref.Instance != nil && ref.Instance.Kind() == cfg.OpParameterReference
	})
	assert.NotEmpty(t, loads, "%s", g)

	returns := g.Exit().Predecessors()
	assert.Len(t, returns, 2)
	for _, ret := range returns {
		assert.Equal(t, cfg.ReturnBranch, ret.FallThrough().Semantics())
	}
}

func TestFromSSADefers(t *testing.T) {
	g := testutil.GraphOf(t, source, "guarded")

	var methods []string
	for _, op := range find(g, func(op cfg.Operation) bool { return op.Kind() == cfg.OpInvocation }) {
		inv := op.(*cfg.Invocation)
		methods = append(methods, inv.Method)
		require.NotNil(t, inv.Receiver)
		assert.Equal(t, "m", inv.Receiver.String())
	}
	assert.Equal(t, []string{"Lock", "Unlock"}, methods)
}

func TestFromSSAConditionalDefer(t *testing.T) {
	g := testutil.GraphOf(t, source, "maybe")

	unlocks := find(g, func(op cfg.Operation) bool {
		inv, ok := op.(*cfg.Invocation)
		return ok && inv.Method == "Unlock"
	})
	require.Len(t, unlocks, 1, "%s", g)

	guards := g.FindAll(func(b *cfg.Block) bool {
		ref, ok := b.BranchValue().(*cfg.LocalReference)
		return ok && ref.Local.Name() == "defer$0"
	})
	require.Len(t, guards, 1, "%s", g)
	assert.Equal(t, "Unlock", guards[0].Conditional().Destination().Operations()[0].(*cfg.Invocation).Method)

	flags := find(g, func(op cfg.Operation) bool {
		asg, ok := op.(*cfg.Assignment)
		if !ok {
			return false
		}
		ref, ok := asg.Target.(*cfg.LocalReference)
		return ok && ref.Local.Name() == "defer$0"
	})
	assert.Len(t, flags, 2, "cleared on entry and set by the defer statement")
}

func TestFromSSAClosure(t *testing.T) {
	g := testutil.GraphOf(t, source, "closure")

	require.Len(t, g.AnonymousFunctions(), 1)
	sub, err := g.SubGraph(g.AnonymousFunctions()[0])
	require.NoError(t, err)
	assert.Equal(t, g, sub.Parent())

	writes := find(sub, func(op cfg.Operation) bool {
		asg, ok := op.(*cfg.Assignment)
		if !ok {
			return false
		}
		ref, ok := asg.Target.(*cfg.LocalReference)
		return ok && ref.Local.Name() == "x"
	})
	require.Len(t, writes, 1, "%s", sub)

	x := writes[0].(*cfg.Assignment).Target.(*cfg.LocalReference).Local
	assert.True(t, sub.IsCaptured(x))
	assert.True(t, g.IsCaptured(x), "the enclosing function shares the symbol")

	inits := find(g, func(op cfg.Operation) bool {
		asg, ok := op.(*cfg.Assignment)
		if !ok {
			return false
		}
		sym, ok := cfg.ReferencedSymbol(asg.Target)
		return ok && sym == x
	})
	assert.NotEmpty(t, inits, "%s", g)
}

func TestFromSSALoop(t *testing.T) {
	g := testutil.GraphOf(t, source, "loop")

	G := graph.OfHashable(g.Successors)
	onCycle := 0
	g.ForEach(func(b *cfg.Block) {
		for _, succ := range g.Successors(b) {
			if G.CanReach(succ, b, func(x, y *cfg.Block) bool { return x == y }) {
				onCycle++
				break
			}
		}
		if b.Ordinal() > 0 && len(b.Predecessors()) == 0 {
			t.Errorf("%s has no predecessors in\n%s", b, g)
		}
	})
	assert.GreaterOrEqual(t, onCycle, 2, "%s", g)
	assert.True(t, g.Exit().IsReachable())
}

func TestFromSSAMethod(t *testing.T) {
	g, err := cfg.FromSSA(testutil.Function(t, testutil.BuildSource(t, source), "Mutex.Lock"))
	require.NoError(t, err)

	stores := find(g, func(op cfg.Operation) bool {
		asg, ok := op.(*cfg.Assignment)
		return ok && asg.Target.Kind() == cfg.OpFieldReference
	})
	require.Len(t, stores, 1)
	assert.Equal(t, "m.held = true", stores[0].String())
}

func TestFromSSAUnavailable(t *testing.T) {
	pkg := testutil.BuildSource(t, source)

	_, err := cfg.FromSSA(testutil.Function(t, pkg, "external"))
	assert.Equal(t, cfg.ErrUnavailable, errors.Cause(err))

	_, err = cfg.FromSSA(nil)
	assert.Equal(t, cfg.ErrUnavailable, errors.Cause(err))
}

package lockbalance

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

func call(method string, recv cfg.Symbol, pos token.Pos) *cfg.Invocation {
	inv := &cfg.Invocation{Method: method, Receiver: &cfg.LocalReference{Local: recv}}
	inv.SetPos(pos)
	return inv
}

func findings(t *testing.T, g *cfg.Graph) []check.Finding {
	t.Helper()
	c := New()
	res, err := symex.New(g, []check.Check{c}).Run(context.Background())
	require.NoError(t, err)
	return res.Findings
}

func TestNeverUnlocked(t *testing.T) {
	mu := cfg.NewVar("mu", cfg.SymbolLocal)
	b := cfg.NewBuilder("forgot")
	blk := b.Block()
	b.Add(blk, call("Lock", mu, 10), &cfg.Invocation{Method: "work"})
	g, err := b.Build()
	require.NoError(t, err)

	fs := findings(t, g)
	require.Len(t, fs, 1)
	assert.Equal(t, Rule, fs[0].Rule)
	assert.Equal(t, token.Pos(10), fs[0].Pos)
	assert.Contains(t, fs[0].Message, "mu")
}

func TestUnlockedInFinally(t *testing.T) {
	mu := cfg.NewVar("mu", cfg.SymbolLocal)
	b := cfg.NewBuilder("finally")
	lock, try, finally := b.Block(), b.Block(), b.Block()
	b.Add(lock, call("Lock", mu, 1))
	b.Add(try, &cfg.Invocation{Method: "work"})
	b.Return(try)
	b.Add(finally, call("Unlock", mu, 2))
	b.EndFinally(finally)
	b.Region(cfg.RegionTryAndFinally, try, finally)
	b.Region(cfg.RegionTry, try, try)
	b.Region(cfg.RegionFinally, finally, finally)
	g, err := b.Build()
	require.NoError(t, err)

	assert.Empty(t, findings(t, g))
}

func TestReleasedOnSomePath(t *testing.T) {
	mu := cfg.NewVar("mu", cfg.SymbolLocal)
	p := cfg.NewVar("p", cfg.SymbolParameter)
	b := cfg.NewBuilder("conditional")
	lock, unlock, skip := b.Block(), b.Block(), b.Block()
	b.Add(lock, call("Lock", mu, 1))
	b.Branch(lock, &cfg.ParameterReference{Parameter: p}, unlock, skip)
	b.Add(unlock, call("Unlock", mu, 2))
	b.Jump(unlock, b.Exit(), cfg.Regular)
	b.Add(skip, &cfg.Invocation{Method: "work"})
	g, err := b.Build()
	require.NoError(t, err)

	// Locks released on some explored path are not reported.
	assert.Empty(t, findings(t, g))
}

func TestShouldExecute(t *testing.T) {
	assert.False(t, New().ShouldExecute(testutil.Chain(2)))
}

const source = `package main

type Mutex struct{ held bool }

func (m *Mutex) Lock()   { m.held = true }
func (m *Mutex) Unlock() { m.held = false }

func forgot(m *Mutex) {
	m.Lock()
}

func guarded(m *Mutex) int {
	m.Lock()
	defer m.Unlock()
	return 1
}

func conditional(m *Mutex, c bool) int {
	if c {
		m.Lock()
		defer m.Unlock()
	}
	return 1
}

func partial(m *Mutex, c bool) int {
	m.Lock()
	if c {
		defer m.Unlock()
	}
	return 1
}

func main() {}
`

func TestFromSource(t *testing.T) {
	tests := []struct {
		fun      string
		findings int
	}{
		{"forgot", 1},
		{"guarded", 0},
		{"conditional", 0},
		{"partial", 1},
	}

	for _, test := range tests {
		g := testutil.GraphOf(t, source, test.fun)
		fs := findings(t, g)
		assert.Len(t, fs, test.findings, "%s:\n%s", test.fun, g)
		for _, f := range fs {
			assert.True(t, f.Pos.IsValid())
		}
	}
}

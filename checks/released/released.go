// Package released checks that resources acquired through a method call
// are released on every path leaving the acquiring block.
package released

import (
	"fmt"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/check"
	"github.com/cs-au-dk/symex/analysis/reach"
)

const Rule = "released"

// Pair names the methods acquiring and releasing a resource.
type Pair struct {
	Acquire, Release string
}

// DefaultPairs are the pairs used by the command line tool.
var DefaultPairs = []Pair{
	{"Lock", "Unlock"},
	{"RLock", "RUnlock"},
}

// Check is a graph-only check; it never inspects program states.
type Check struct {
	check.Base
	pairs    []Pair
	graph    *cfg.Graph
	findings check.Findings
}

func New(pairs ...Pair) *Check {
	if len(pairs) == 0 {
		pairs = DefaultPairs
	}
	return &Check{pairs: pairs}
}

func (*Check) Name() string { return Rule }

func (c *Check) ShouldExecute(g *cfg.Graph) bool {
	c.graph = g
	for _, b := range g.Blocks() {
		if len(c.acquisitions(b)) > 0 {
			return true
		}
	}
	return false
}

type call struct {
	index int
	inv   *cfg.Invocation
	sym   cfg.Symbol
	pair  Pair
}

// calls lists the invocations of b on a symbol, in block order.
func calls(b *cfg.Block) (res []call) {
	for i, op := range b.Operations() {
		cfg.Walk(op, func(op cfg.Operation) bool {
			inv, ok := op.(*cfg.Invocation)
			if !ok || inv.Receiver == nil {
				return true
			}
			recv := inv.Receiver
			for {
				conv, ok := recv.(*cfg.Conversion)
				if !ok || conv.Operand == nil {
					break
				}
				recv = conv.Operand
			}
			if sym, ok := cfg.ReferencedSymbol(recv); ok {
				res = append(res, call{index: i, inv: inv, sym: sym})
			}
			return true
		})
	}
	return
}

func (c *Check) acquisitions(b *cfg.Block) (res []call) {
	for _, cl := range calls(b) {
		for _, p := range c.pairs {
			if cl.inv.Method == p.Acquire {
				cl.pair = p
				res = append(res, cl)
			}
		}
	}
	return
}

func releases(b *cfg.Block, sym cfg.Symbol, method string, after int) bool {
	for _, cl := range calls(b) {
		if cl.index >= after && cl.sym.ID() == sym.ID() && cl.inv.Method == method {
			return true
		}
	}
	return false
}

// AllPathsRelease checks whether every path leaving acquire reaches a
// block satisfying release.
func AllPathsRelease(g *cfg.Graph, acquire *cfg.Block, release func(*cfg.Block) bool) bool {
	v := reach.Validator{IsValid: release}
	for _, succ := range g.Successors(acquire) {
		if !v.CheckAllPathsFrom(g, succ) {
			return false
		}
	}
	return len(g.Successors(acquire)) > 0
}

func (c *Check) ExecutionCompleted() {
	if c.graph == nil {
		return
	}
	for _, b := range c.graph.Blocks() {
		if !b.IsReachable() {
			continue
		}
		for _, acq := range c.acquisitions(b) {
			if releases(b, acq.sym, acq.pair.Release, acq.index+1) {
				continue
			}
			sym, method := acq.sym, acq.pair.Release
			ok := AllPathsRelease(c.graph, b, func(o *cfg.Block) bool {
				return releases(o, sym, method, 0)
			})
			if !ok {
				c.findings = append(c.findings, check.Finding{
					Rule:    Rule,
					Message: fmt.Sprintf("%s.%s is not followed by %s on every path", sym.Name(), acq.pair.Acquire, method),
					Pos:     acq.inv.Pos(),
				})
			}
		}
	}
}

func (c *Check) Findings() []check.Finding {
	return c.findings.Dedup()
}

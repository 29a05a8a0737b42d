// Package lockbalance reports locks that are held when a function returns
// and that are never released on any explored path.
package lockbalance

import (
	"fmt"
	"go/token"
	"sort"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/check"
	"github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/cs-au-dk/symex/analysis/state"
)

const Rule = "lockbalance"

var (
	acquire = map[string]bool{"Lock": true, "RLock": true}
	release = map[string]bool{"Unlock": true, "RUnlock": true}
)

type lock struct {
	sym cfg.Symbol
	// acquisitions are the positions of the calls locking sym.
	acquisitions map[token.Pos]bool
}

type Check struct {
	check.Base
	locks      map[uint64]*lock
	released   map[uint64]bool
	heldAtExit map[uint64]bool
	findings   check.Findings
}

func New() *Check {
	return &Check{
		locks:      make(map[uint64]*lock),
		released:   make(map[uint64]bool),
		heldAtExit: make(map[uint64]bool),
	}
}

func (*Check) Name() string { return Rule }

// ReportsPartialResults marks findings as valid after budget exhaustion:
// a lock held at exit on an explored path is held regardless of the paths
// left unexplored.
func (*Check) ReportsPartialResults() {}

func (*Check) ShouldExecute(g *cfg.Graph) bool {
	found := false
	for _, op := range g.Operations() {
		cfg.Walk(op, func(op cfg.Operation) bool {
			if inv, ok := op.(*cfg.Invocation); ok && acquire[inv.Method] {
				found = true
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

// receiver resolves the symbol an invocation is called on.
func receiver(st state.ProgramState, inv *cfg.Invocation) (cfg.Symbol, bool) {
	if inv.Receiver == nil {
		return nil, false
	}
	return cfg.ReferencedSymbol(st.ResolveCaptureAndUnwrapConversion(inv.Receiver))
}

func (c *Check) PostProcess(ctx *check.OperationContext) []state.ProgramState {
	inv, ok := ctx.Operation.(*cfg.Invocation)
	if !ok {
		return []state.ProgramState{ctx.State}
	}
	sym, ok := receiver(ctx.State, inv)
	if !ok {
		return []state.ProgramState{ctx.State}
	}

	st := ctx.State
	switch {
	case acquire[inv.Method]:
		l, ok := c.locks[sym.ID()]
		if !ok {
			l = &lock{sym: sym, acquisitions: make(map[token.Pos]bool)}
			c.locks[sym.ID()] = l
		}
		l.acquisitions[inv.Pos()] = true
		st = st.SetSymbolConstraint(sym, constraint.LockHeld).Preserve(sym)
	case release[inv.Method]:
		c.released[sym.ID()] = true
		st = st.SetSymbolConstraint(sym, constraint.LockReleased)
	}
	return []state.ProgramState{st}
}

func (c *Check) ExitReached(ctx *check.ExitContext) {
	for id, l := range c.locks {
		if h, ok := ctx.State.SymbolConstraint(l.sym, constraint.KindLock); ok && h.Equal(constraint.LockHeld) {
			c.heldAtExit[id] = true
		}
	}
}

func (c *Check) ExecutionCompleted() {
	for id := range c.heldAtExit {
		if c.released[id] {
			continue
		}
		l := c.locks[id]
		var positions []token.Pos
		for pos := range l.acquisitions {
			positions = append(positions, pos)
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

		c.findings = append(c.findings, check.Finding{
			Rule:      Rule,
			Message:   fmt.Sprintf("%s is locked but never unlocked", l.sym.Name()),
			Pos:       positions[0],
			Secondary: positions[1:],
		})
	}
}

func (c *Check) Findings() []check.Finding {
	return c.findings.Dedup()
}

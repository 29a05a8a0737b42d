package state

import (
	"sort"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/cs-au-dk/symex/utils"
)

// Digest summarizes a state restricted to a subset of its symbols. Value
// identities are abstracted away; only the constraints of each value and
// which symbols share a value are retained.
type Digest struct {
	entries []digestEntry
	stack   []constraint.Set
	hash    uint32
}

type digestEntry struct {
	symbol uint64
	// alias is the index of the first entry bound to the same value.
	alias       int
	constraints constraint.Set
}

func (e digestEntry) hash() uint32 {
	return utils.HashCombine(uint32(e.symbol), uint32(e.symbol>>32), uint32(e.alias), e.constraints.Hash())
}

func (e digestEntry) equal(o digestEntry) bool {
	return e.symbol == o.symbol && e.alias == o.alias && e.constraints.Equal(o.constraints)
}

// Digest computes the digest of the state over live and preserved
// symbols. A nil live function includes every symbol.
func (s ProgramState) Digest(live func(cfg.Symbol) bool) Digest {
	var d Digest
	aliases := make(map[uint64]int)

	for _, sym := range s.sortedSymbols() {
		if live != nil && !live(sym) && !s.IsPreserved(sym) {
			continue
		}
		v, _ := s.symbols.Get(sym)
		idx, seen := aliases[v.ID()]
		if !seen {
			idx = len(d.entries)
			aliases[v.ID()] = idx
		}
		e := digestEntry{sym.ID(), idx, s.Constraints(v)}
		d.entries = append(d.entries, e)
		d.hash += e.hash()
	}

	for it := s.stack.Iterator(); !it.Done(); {
		i, v := it.Next()
		cs := s.Constraints(v)
		d.stack = append(d.stack, cs)
		d.hash += utils.HashCombine(uint32(i), cs.Hash())
	}
	return d
}

func (d Digest) Hash() uint32 { return d.hash }

func (d Digest) Equal(o Digest) bool {
	if d.hash != o.hash || len(d.entries) != len(o.entries) || len(d.stack) != len(o.stack) {
		return false
	}
	for i, e := range d.entries {
		if !e.equal(o.entries[i]) {
			return false
		}
	}
	for i, cs := range d.stack {
		if !cs.Equal(o.stack[i]) {
			return false
		}
	}
	return true
}

// Equal compares two states over the symbols selected by live.
func (s ProgramState) Equal(o ProgramState, live func(cfg.Symbol) bool) bool {
	return s.Digest(live).Equal(o.Digest(live))
}

func (s ProgramState) sortedSymbols() []cfg.Symbol {
	syms := make([]cfg.Symbol, 0, s.symbols.Len())
	for it := s.symbols.Iterator(); !it.Done(); {
		sym, _, _ := it.Next()
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].ID() < syms[j].ID() })
	return syms
}

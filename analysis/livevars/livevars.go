// Package livevars computes which local symbols may still be read at the
// start of each block of a control-flow graph.
package livevars

import (
	"sort"

	"github.com/benbjohnson/immutable"
	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/utils"
	"github.com/cs-au-dk/symex/utils/worklist"
)

type symbolSet = *immutable.Map[cfg.Symbol, struct{}]

// Liveness holds the live-in sets of every block of a graph.
type Liveness struct {
	graph  *cfg.Graph
	liveIn *immutable.Map[*cfg.Block, symbolSet]
}

// successors includes exceptional edges and the finally blocks that run
// when a branch leaves a try region.
func successors(g *cfg.Graph) map[*cfg.Block][]*cfg.Block {
	succs := make(map[*cfg.Block][]*cfg.Block)
	g.ForEach(func(b *cfg.Block) {
		for _, p := range b.Predecessors() {
			succs[p] = append(succs[p], b)
		}
		for _, br := range b.Successors() {
			for _, r := range br.FinallyRegions() {
				succs[b] = append(succs[b], g.BlockAt(r.FirstBlockOrdinal()))
			}
		}
	})
	return succs
}

// LiveVars runs a backward analysis over g until the live-in sets
// stabilize.
func LiveVars(g *cfg.Graph) *Liveness {
	succs := successors(g)
	preds := make(map[*cfg.Block][]*cfg.Block)
	for b, ss := range succs {
		for _, s := range ss {
			preds[s] = append(preds[s], b)
		}
	}

	type uses struct{ gen, kill map[cfg.Symbol]bool }
	local := make(map[*cfg.Block]uses)
	g.ForEach(func(b *cfg.Block) {
		gen, kill := blockUses(b)
		local[b] = uses{gen, kill}
	})

	liveIn := immutable.NewMap[*cfg.Block, symbolSet](utils.PointerHasher[*cfg.Block]{})
	get := func(b *cfg.Block) symbolSet {
		if set, ok := liveIn.Get(b); ok {
			return set
		}
		return utils.NewIdentityMap[cfg.Symbol, struct{}]()
	}

	transfer := func(b *cfg.Block) symbolSet {
		set := get(b)
		for _, succ := range succs[b] {
			for it := get(succ).Iterator(); !it.Done(); {
				sym, _, _ := it.Next()
				if !local[b].kill[sym] {
					set = set.Set(sym, struct{}{})
				}
			}
		}
		for sym := range local[b].gen {
			set = set.Set(sym, struct{}{})
		}
		return set
	}

	// Sets only grow, so a change in size signals a change in content.
	worklist.StartV(g.Blocks(), func(b *cfg.Block, add func(*cfg.Block)) {
		old := get(b)
		up := transfer(b)
		if _, ok := liveIn.Get(b); ok && up.Len() == old.Len() {
			return
		}
		liveIn = liveIn.Set(b, up)
		for _, p := range preds[b] {
			add(p)
		}
	})

	return &Liveness{g, liveIn}
}

// IsLive checks whether sym may be read on some path from the start of b.
// Symbols that are not locals or parameters, and symbols captured by
// nested functions, are always live.
func (l *Liveness) IsLive(b *cfg.Block, sym cfg.Symbol) bool {
	switch sym.Kind() {
	case cfg.SymbolLocal, cfg.SymbolParameter:
	default:
		return true
	}
	if l.graph.IsCaptured(sym) {
		return true
	}
	set, ok := l.liveIn.Get(b)
	if !ok {
		return false
	}
	_, ok = set.Get(sym)
	return ok
}

// Live returns IsLive partially applied to b.
func (l *Liveness) Live(b *cfg.Block) func(cfg.Symbol) bool {
	return func(sym cfg.Symbol) bool { return l.IsLive(b, sym) }
}

// LiveIn lists the live local symbols of b in identifier order.
func (l *Liveness) LiveIn(b *cfg.Block) (res []cfg.Symbol) {
	set, ok := l.liveIn.Get(b)
	if !ok {
		return nil
	}
	for it := set.Iterator(); !it.Done(); {
		sym, _, _ := it.Next()
		res = append(res, sym)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID() < res[j].ID() })
	return
}

// Package reach decides properties that must hold on every path of a
// control-flow graph, without symbolic state.
package reach

import (
	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/utils/worklist"
)

// Validator checks that every path from the entry reaches a valid block
// before reaching an invalid block, the exit, or a dead end. Blocks that
// are neither valid nor invalid are descended into. A block visited
// twice counts as satisfying the property, so loops never fail.
type Validator struct {
	IsValid   func(*cfg.Block) bool
	IsInvalid func(*cfg.Block) bool
}

func (v Validator) CheckAllPaths(g *cfg.Graph) bool {
	return v.CheckAllPathsFrom(g, g.Entry())
}

// CheckAllPathsFrom checks the paths starting at from.
func (v Validator) CheckAllPathsFrom(g *cfg.Graph, from *cfg.Block) bool {
	visited := make(map[*cfg.Block]bool)
	stack := worklist.EmptyStack[*cfg.Block]()
	stack.Add(from)

	for !stack.IsEmpty() {
		b := stack.GetNext()
		if visited[b] {
			continue
		}
		visited[b] = true

		switch {
		case v.IsValid != nil && v.IsValid(b):
			continue
		case v.IsInvalid != nil && v.IsInvalid(b):
			return false
		case b.Kind() == cfg.Exit:
			return false
		}

		succs := g.Successors(b)
		if len(succs) == 0 {
			return false
		}
		for _, s := range succs {
			stack.Add(s)
		}
	}
	return true
}

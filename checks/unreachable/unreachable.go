// Package unreachable reports code that no path from the entry reaches.
// Connected unreachable blocks are reported once.
package unreachable

import (
	"fmt"
	"go/token"
	"sort"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/check"
	uf "github.com/spakin/disjoint"
)

const Rule = "unreachable"

type Check struct {
	check.Base
	graph    *cfg.Graph
	findings check.Findings
}

func New() *Check { return &Check{} }

func (*Check) Name() string { return Rule }

func (c *Check) ShouldExecute(g *cfg.Graph) bool {
	c.graph = g
	for _, b := range g.Blocks() {
		if !b.IsReachable() && len(b.Operations()) > 0 {
			return true
		}
	}
	return false
}

// Islands groups the unreachable blocks of g into connected components,
// ignoring edge direction. Islands and their blocks are ordered by
// ordinal.
func Islands(g *cfg.Graph) [][]*cfg.Block {
	elements := make(map[*cfg.Block]*uf.Element)
	for _, b := range g.Blocks() {
		if !b.IsReachable() {
			el := uf.NewElement()
			el.Data = b
			elements[b] = el
		}
	}

	for b, el := range elements {
		for _, succ := range g.Successors(b) {
			if other, ok := elements[succ]; ok {
				uf.Union(el, other)
			}
		}
	}

	sets := make(map[*uf.Element][]*cfg.Block)
	for _, b := range g.Blocks() {
		if el, ok := elements[b]; ok {
			rep := el.Find()
			sets[rep] = append(sets[rep], b)
		}
	}

	islands := make([][]*cfg.Block, 0, len(sets))
	for _, set := range sets {
		islands = append(islands, set)
	}
	sort.Slice(islands, func(i, j int) bool {
		return islands[i][0].Ordinal() < islands[j][0].Ordinal()
	})
	return islands
}

func firstPos(b *cfg.Block) token.Pos {
	for _, op := range b.Operations() {
		if op.Pos().IsValid() {
			return op.Pos()
		}
	}
	return token.NoPos
}

// ExecutionCompleted reports islands holding at least one operation.
func (c *Check) ExecutionCompleted() {
	if c.graph == nil {
		return
	}
	for _, island := range Islands(c.graph) {
		var (
			positions []token.Pos
			ops       int
		)
		for _, b := range island {
			ops += len(b.Operations())
			if pos := firstPos(b); pos.IsValid() {
				positions = append(positions, pos)
			}
		}
		if ops == 0 {
			continue
		}

		f := check.Finding{
			Rule:    Rule,
			Message: fmt.Sprintf("unreachable code starting at %s", island[0]),
		}
		if len(positions) > 0 {
			f.Pos, f.Secondary = positions[0], positions[1:]
		}
		c.findings = append(c.findings, f)
	}
}

func (c *Check) Findings() []check.Finding {
	return c.findings
}

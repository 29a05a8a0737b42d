package cfg

import (
	"go/token"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnavailable is returned when a graph cannot be constructed.
var ErrUnavailable = errors.New("cfg: graph unavailable")

// Graph is the control-flow graph of one procedure. Block 0 is the entry
// block and the last block is the exit block.
type Graph struct {
	name     string
	fset     *token.FileSet
	blocks   []*Block
	root     *Region
	parent   *Graph
	origin   Operation
	captured map[uint64]Symbol

	localFunctions     []*LocalFunction
	anonymousFunctions []*AnonymousFunction

	mu        sync.Mutex
	subgraphs map[Operation]subgraph
}

type subgraph struct {
	graph *Graph
	err   error
}

func (g *Graph) Name() string            { return g.name }
func (g *Graph) FileSet() *token.FileSet { return g.fset }
func (g *Graph) Blocks() []*Block        { return g.blocks }
func (g *Graph) Entry() *Block           { return g.blocks[0] }
func (g *Graph) Exit() *Block            { return g.blocks[len(g.blocks)-1] }
func (g *Graph) Root() *Region           { return g.root }

// Parent is the graph of the enclosing function for nested functions.
func (g *Graph) Parent() *Graph { return g.parent }

// Origin is the operation the graph was constructed from, if it is nested.
func (g *Graph) Origin() Operation { return g.origin }

func (g *Graph) LocalFunctions() []*LocalFunction         { return g.localFunctions }
func (g *Graph) AnonymousFunctions() []*AnonymousFunction { return g.anonymousFunctions }

// BlockAt returns the block with the given ordinal.
func (g *Graph) BlockAt(ordinal int) *Block {
	if ordinal < 0 || ordinal >= len(g.blocks) {
		return nil
	}
	return g.blocks[ordinal]
}

// Position resolves a source position using the graph's file set.
func (g *Graph) Position(pos token.Pos) token.Position {
	if g.fset == nil {
		return token.Position{}
	}
	return g.fset.Position(pos)
}

// EnclosingRegion returns the innermost region containing the block.
func (g *Graph) EnclosingRegion(block *Block) *Region {
	return block.region
}

// RegionsLeft returns the regions exited when taking the branch.
func (g *Graph) RegionsLeft(branch *Branch) []*Region {
	return branch.leaving
}

// Locals lists the symbols whose lifetime is bounded by some region.
func (g *Graph) Locals() (res []Symbol) {
	var visit func(r *Region)
	visit = func(r *Region) {
		res = append(res, r.locals...)
		for _, n := range r.nested {
			visit(n)
		}
	}
	visit(g.root)
	return
}

// IsCaptured is true for symbols shared with nested or enclosing functions.
func (g *Graph) IsCaptured(sym Symbol) bool {
	_, ok := g.captured[sym.ID()]
	return ok
}

// Successors returns the destination blocks of the block's branches.
func (g *Graph) Successors(block *Block) (res []*Block) {
	for _, br := range block.Successors() {
		if br.destination != nil {
			res = append(res, br.destination)
		}
	}
	return
}

// ForEach calls do for every block in ordinal order.
func (g *Graph) ForEach(do func(*Block)) {
	for _, b := range g.blocks {
		do(b)
	}
}

// FindAll collects the blocks satisfying pred in ordinal order.
func (g *Graph) FindAll(pred func(*Block) bool) (res []*Block) {
	g.ForEach(func(b *Block) {
		if pred(b) {
			res = append(res, b)
		}
	})
	return
}

// Operations returns every operation of the graph, nested operations
// included, in block execution order.
func (g *Graph) Operations() (res []Operation) {
	g.ForEach(func(b *Block) {
		for _, step := range b.order {
			if !step.ShortCircuit {
				res = append(res, step.Op)
			}
		}
	})
	return
}

// SubGraph returns the graph of a nested anonymous or local function
// declared in g. The result is memoized.
func (g *Graph) SubGraph(op Operation) (*Graph, error) {
	var body BodyFunc
	switch op := op.(type) {
	case *AnonymousFunction:
		if !g.declares(op) {
			return nil, errors.Wrapf(ErrUnavailable, "%s is not declared in %s", op, g.name)
		}
		body = op.Body
	case *LocalFunction:
		if !g.declares(op) {
			return nil, errors.Wrapf(ErrUnavailable, "%s is not declared in %s", op, g.name)
		}
		body = op.Body
	default:
		return nil, errors.Wrapf(ErrUnavailable, "%s has no body", op)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if res, ok := g.subgraphs[op]; ok {
		return res.graph, res.err
	}

	var res subgraph
	if body == nil {
		res.err = errors.Wrapf(ErrUnavailable, "%s: body is not bound", op)
	} else {
		res.graph, res.err = body(g)
		switch {
		case res.err != nil:
			res.graph = nil
			if errors.Cause(res.err) != ErrUnavailable {
				res.err = errors.Wrap(ErrUnavailable, res.err.Error())
			}
		case res.graph == nil:
			res.err = errors.Wrapf(ErrUnavailable, "%s: empty body", op)
		default:
			res.graph.parent = g
			res.graph.origin = op
		}
	}

	if g.subgraphs == nil {
		g.subgraphs = make(map[Operation]subgraph)
	}
	g.subgraphs[op] = res
	return res.graph, res.err
}

func (g *Graph) declares(op Operation) bool {
	for _, f := range g.anonymousFunctions {
		if Operation(f) == op {
			return true
		}
	}
	for _, f := range g.localFunctions {
		if Operation(f) == op {
			return true
		}
	}
	return false
}

func unavailablef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnavailable, format, args...)
}

package cfg

import (
	"go/token"
	"sort"

	"github.com/cs-au-dk/symex/utils/graph"
	"github.com/pkg/errors"
)

// Builder constructs graphs programmatically. Blocks are numbered in
// creation order. A block without an explicit successor falls through to
// the next block, or to the exit block if it is the last one.
type Builder struct {
	name     string
	fset     *token.FileSet
	entry    *Block
	exit     *Block
	blocks   []*Block
	regions  []*Region
	captured map[uint64]Symbol
	err      error
	built    bool
}

func NewBuilder(name string) *Builder {
	return &Builder{
		name:     name,
		entry:    &Block{kind: Entry},
		exit:     &Block{kind: Exit, ordinal: -1},
		captured: make(map[uint64]Symbol),
	}
}

// SetFileSet attaches the file set used to resolve operation positions.
func (b *Builder) SetFileSet(fset *token.FileSet) *Builder {
	b.fset = fset
	return b
}

// Entry returns the entry block. It may only be the source of a jump.
func (b *Builder) Entry() *Block { return b.entry }

// Exit returns the exit block, which may only be the target of branches.
func (b *Builder) Exit() *Block { return b.exit }

// Block creates a new normal block.
func (b *Builder) Block() *Block {
	blk := &Block{kind: Normal, ordinal: len(b.blocks) + 1}
	b.blocks = append(b.blocks, blk)
	return blk
}

func (b *Builder) fail(format string, args ...interface{}) {
	if b.err == nil {
		b.err = errors.Errorf(format, args...)
	}
}

func (b *Builder) owns(blk *Block) bool {
	if blk == b.entry || blk == b.exit {
		return true
	}
	return blk != nil && blk.ordinal >= 1 && blk.ordinal <= len(b.blocks) && b.blocks[blk.ordinal-1] == blk
}

// Add appends operations to a normal block.
func (b *Builder) Add(blk *Block, ops ...Operation) {
	if !b.owns(blk) || blk.kind != Normal {
		b.fail("%s: operations can only be added to normal blocks", b.name)
		return
	}
	for _, op := range ops {
		if op == nil {
			b.fail("%s: nil operation in %s", b.name, blk)
			return
		}
	}
	blk.operations = append(blk.operations, ops...)
}

// Jump sets the unconditional successor of a block.
func (b *Builder) Jump(from, to *Block, semantics Semantics) {
	if !b.owns(from) || from == b.exit {
		b.fail("%s: invalid jump source", b.name)
		return
	}
	if to == nil && !semantics.allowsNilDestination() {
		b.fail("%s: %s branch from %s needs a destination", b.name, semantics, from)
		return
	}
	if to != nil && (!b.owns(to) || to == b.entry) {
		b.fail("%s: invalid jump target from %s", b.name, from)
		return
	}
	from.fallThrough = &Branch{source: from, destination: to, semantics: semantics}
}

// Branch makes a block two-way: whenTrue is taken if cond evaluates to true.
func (b *Builder) Branch(from *Block, cond Operation, whenTrue, whenFalse *Block) {
	b.BranchOn(from, cond, WhenTrue, whenTrue, whenFalse)
}

// BranchOn makes a block two-way. The conditional successor is taken when
// cond matches kind, and fallThrough is taken otherwise.
func (b *Builder) BranchOn(from *Block, cond Operation, kind ConditionKind, conditional, fallThrough *Block) {
	switch {
	case cond == nil:
		b.fail("%s: conditional branch from %s without a condition", b.name, from)
		return
	case !b.owns(from) || from.kind != Normal:
		b.fail("%s: only normal blocks can branch", b.name)
		return
	case !b.owns(conditional) || !b.owns(fallThrough) || conditional == b.entry || fallThrough == b.entry:
		b.fail("%s: invalid branch target from %s", b.name, from)
		return
	}

	from.branchValue = cond
	from.conditionKind = kind
	from.conditional = &Branch{source: from, destination: conditional, semantics: Regular, isConditional: true}
	from.fallThrough = &Branch{source: from, destination: fallThrough, semantics: Regular}
}

// Throw ends a block by raising the exception computed by its operations.
func (b *Builder) Throw(from *Block) { b.Jump(from, nil, ThrowBranch) }

// Rethrow ends a catch block by raising the caught exception again.
func (b *Builder) Rethrow(from *Block) { b.Jump(from, nil, Rethrow) }

// EndFinally ends the last block of a finally region.
func (b *Builder) EndFinally(from *Block) { b.Jump(from, nil, StructuredExceptionHandling) }

// Return jumps to the exit block.
func (b *Builder) Return(from *Block) { b.Jump(from, b.exit, ReturnBranch) }

// Region declares a region spanning the blocks first through last. Regions
// must nest properly. Regions with identical ranges nest in declaration
// order.
func (b *Builder) Region(kind RegionKind, first, last *Block, locals ...Symbol) *Region {
	if kind == RegionRoot {
		b.fail("%s: the root region is implicit", b.name)
		return nil
	}
	if !b.owns(first) || !b.owns(last) || first.kind != Normal || last.kind != Normal || first.ordinal > last.ordinal {
		b.fail("%s: invalid %s region bounds", b.name, kind)
		return nil
	}

	r := &Region{kind: kind, first: first.ordinal, last: last.ordinal, locals: locals}
	b.regions = append(b.regions, r)
	return r
}

// Capture marks a symbol as shared with enclosing or nested functions.
func (b *Builder) Capture(syms ...Symbol) {
	for _, sym := range syms {
		b.captured[sym.ID()] = sym
	}
}

// Build finalizes the graph. A builder can only be built once.
func (b *Builder) Build() (*Graph, error) {
	if b.built {
		return nil, errors.Wrapf(ErrUnavailable, "%s: already built", b.name)
	}
	b.built = true
	if b.err != nil {
		return nil, errors.Wrap(ErrUnavailable, b.err.Error())
	}

	g := &Graph{
		name:     b.name,
		fset:     b.fset,
		captured: b.captured,
	}

	b.exit.ordinal = len(b.blocks) + 1
	g.blocks = make([]*Block, 0, len(b.blocks)+2)
	g.blocks = append(g.blocks, b.entry)
	g.blocks = append(g.blocks, b.blocks...)
	g.blocks = append(g.blocks, b.exit)

	for i, blk := range g.blocks {
		blk.graph = g
		if blk.kind == Exit || blk.fallThrough != nil {
			continue
		}
		blk.fallThrough = &Branch{source: blk, destination: g.blocks[i+1], semantics: Regular}
	}

	if err := b.buildRegions(g); err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}

	for _, blk := range g.blocks {
		for _, br := range blk.Successors() {
			computeBranchRegions(g, br)
		}
		blk.computeOrder()
	}

	b.linkPredecessors(g)
	b.collectFunctions(g)
	return g, nil
}

func (b *Builder) buildRegions(g *Graph) error {
	g.root = &Region{kind: RegionRoot, first: 0, last: len(g.blocks) - 1}

	regions := make([]*Region, len(b.regions))
	copy(regions, b.regions)
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].first != regions[j].first {
			return regions[i].first < regions[j].first
		}
		return regions[i].last > regions[j].last
	})

	stack := []*Region{g.root}
	for _, r := range regions {
		for {
			top := stack[len(stack)-1]
			if top.first <= r.first && r.last <= top.last {
				break
			}
			if r.first <= top.last {
				return errors.Errorf("%s: %s overlaps %s", b.name, r, top)
			}
			stack = stack[:len(stack)-1]
		}

		parent := stack[len(stack)-1]
		r.parent = parent
		parent.nested = append(parent.nested, r)
		stack = append(stack, r)
	}

	for _, r := range regions {
		switch r.kind {
		case RegionTry:
			if k := r.parent.kind; k != RegionTryAndCatch && k != RegionTryAndFinally {
				return errors.Errorf("%s: %s must be nested in a try statement region", b.name, r)
			}
		case RegionCatch, RegionFilter:
			if r.parent.kind != RegionTryAndCatch {
				return errors.Errorf("%s: %s must be nested in a try-catch region", b.name, r)
			}
		case RegionFinally:
			if r.parent.kind != RegionTryAndFinally {
				return errors.Errorf("%s: %s must be nested in a try-finally region", b.name, r)
			}
		}
	}

	for _, blk := range g.blocks {
		blk.region = g.root
	}
	for _, r := range regions {
		for o := r.first; o <= r.last; o++ {
			g.blocks[o].region = r
		}
	}
	return nil
}

// computeBranchRegions determines the regions left and entered by a branch.
// Branches without a destination leave every enclosing region.
func computeBranchRegions(g *Graph, br *Branch) {
	var dst *Region
	if br.destination != nil {
		dst = br.destination.region
	}

	for r := br.source.region; r != nil && r.kind != RegionRoot; r = r.parent {
		if dst != nil && r.Encloses(dst) {
			break
		}
		br.leaving = append(br.leaving, r)
		if br.destination != nil && r.kind == RegionTry && r.parent.kind == RegionTryAndFinally {
			if fin := r.Sibling(RegionFinally); fin != nil && !fin.Contains(br.destination.ordinal) {
				br.finally = append(br.finally, fin)
			}
		}
	}

	if dst == nil {
		return
	}
	for r := dst; r != nil && r.kind != RegionRoot; r = r.parent {
		if r.Encloses(br.source.region) {
			break
		}
		br.entering = append([]*Region{r}, br.entering...)
	}
}

// implicitSuccessors are the exceptional edges of a block: from the start
// of a try region into its handlers, and from unhandled throws to the exit.
func implicitSuccessors(g *Graph, blk *Block) (res []*Block) {
	for r := blk.region; r != nil; r = r.parent {
		if r.kind == RegionTry && r.first == blk.ordinal {
			for _, h := range r.parent.nested {
				if h.kind.IsHandler() {
					res = append(res, g.blocks[h.first])
				}
			}
		}
	}

	if ft := blk.fallThrough; ft != nil && ft.destination == nil {
		switch ft.semantics {
		case ThrowBranch, Rethrow, ProgramTermination, Error:
			res = append(res, g.Exit())
		}
	}
	return
}

func (b *Builder) linkPredecessors(g *Graph) {
	flow := graph.OfHashable(func(blk *Block) []*Block {
		return append(g.Successors(blk), implicitSuccessors(g, blk)...)
	})

	link := func(from, to *Block) {
		for _, p := range to.predecessors {
			if p == from {
				return
			}
		}
		to.predecessors = append(to.predecessors, from)
	}

	for _, blk := range g.blocks {
		for _, succ := range flow.Edges(blk) {
			link(blk, succ)
		}
	}

	for _, blk := range flow.Reachable(g.Entry()) {
		blk.reachable = true
	}
}

func (b *Builder) collectFunctions(g *Graph) {
	for _, blk := range g.blocks {
		ops := append([]Operation{}, blk.operations...)
		if blk.branchValue != nil {
			ops = append(ops, blk.branchValue)
		}

		for _, op := range ops {
			Walk(op, func(op Operation) bool {
				switch op := op.(type) {
				case *AnonymousFunction:
					g.anonymousFunctions = append(g.anonymousFunctions, op)
				case *LocalFunction:
					g.localFunctions = append(g.localFunctions, op)
					blk.region.localFunctions = append(blk.region.localFunctions, op)
				}
				return true
			})
		}
	}
}

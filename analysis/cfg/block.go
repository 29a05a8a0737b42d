package cfg

import "fmt"

// BlockKind distinguishes the synthetic entry and exit blocks.
type BlockKind int

const (
	Normal BlockKind = iota
	Entry
	Exit
)

func (k BlockKind) String() string {
	switch k {
	case Normal:
		return "Normal"
	case Entry:
		return "Entry"
	case Exit:
		return "Exit"
	}
	return fmt.Sprintf("BlockKind(%d)", int(k))
}

// ConditionKind determines which truth value of the branch value takes the
// conditional edge.
type ConditionKind int

const (
	WhenTrue ConditionKind = iota
	WhenFalse
)

func (k ConditionKind) String() string {
	if k == WhenFalse {
		return "WhenFalse"
	}
	return "WhenTrue"
}

// Semantics of a control-flow branch.
type Semantics int

const (
	Regular Semantics = iota
	ReturnBranch
	ThrowBranch
	Rethrow
	StructuredExceptionHandling
	ProgramTermination
	Error
	None
)

var semanticsNames = [...]string{
	Regular:                     "Regular",
	ReturnBranch:                "Return",
	ThrowBranch:                 "Throw",
	Rethrow:                     "Rethrow",
	StructuredExceptionHandling: "StructuredExceptionHandling",
	ProgramTermination:          "ProgramTermination",
	Error:                       "Error",
	None:                        "None",
}

func (s Semantics) String() string {
	if s >= 0 && int(s) < len(semanticsNames) {
		return semanticsNames[s]
	}
	return fmt.Sprintf("Semantics(%d)", int(s))
}

// allowsNilDestination is true for branches whose target is decided at
// run time by the enclosing regions.
func (s Semantics) allowsNilDestination() bool {
	switch s {
	case ThrowBranch, Rethrow, StructuredExceptionHandling, ProgramTermination, Error, None:
		return true
	}
	return false
}

// Step is one entry of the execution order of a block. The value of a root
// step is discarded once it has been evaluated.
//
// A short-circuit step follows the left operand of the Logical operation Op.
// When the left operand decides Op, evaluation resumes at index Resume, the
// step of Op itself, and the right operand is never evaluated.
type Step struct {
	Op           Operation
	Root         bool
	ShortCircuit bool
	Resume       int
}

// Block is a basic block. Blocks are immutable once the graph is built.
type Block struct {
	ordinal       int
	kind          BlockKind
	operations    []Operation
	order         []Step
	predecessors  []*Block
	fallThrough   *Branch
	conditional   *Branch
	branchValue   Operation
	conditionKind ConditionKind
	reachable     bool
	region        *Region
	graph         *Graph
}

func (b *Block) Ordinal() int                 { return b.ordinal }
func (b *Block) Kind() BlockKind              { return b.kind }
func (b *Block) Operations() []Operation      { return b.operations }
func (b *Block) Predecessors() []*Block       { return b.predecessors }
func (b *Block) FallThrough() *Branch         { return b.fallThrough }
func (b *Block) Conditional() *Branch         { return b.conditional }
func (b *Block) BranchValue() Operation       { return b.branchValue }
func (b *Block) ConditionKind() ConditionKind { return b.conditionKind }
func (b *Block) IsReachable() bool            { return b.reachable }
func (b *Block) Graph() *Graph                { return b.graph }

// Region is the innermost region enclosing the block.
func (b *Block) Region() *Region { return b.region }

// ExecutionOrder lists every operation of the block in evaluation order,
// children before parents, ending with the branch value if any. Logical
// operations additionally get a short-circuit step after their left operand.
func (b *Block) ExecutionOrder() []Step { return b.order }

// Successors returns the outgoing branches, the conditional one first.
func (b *Block) Successors() (res []*Branch) {
	if b.conditional != nil {
		res = append(res, b.conditional)
	}
	if b.fallThrough != nil {
		res = append(res, b.fallThrough)
	}
	return
}

// IsConditional is true for two-way blocks.
func (b *Block) IsConditional() bool { return b.conditional != nil }

func (b *Block) String() string {
	switch b.kind {
	case Entry, Exit:
		return fmt.Sprintf("B%d (%s)", b.ordinal, b.kind)
	}
	return fmt.Sprintf("B%d", b.ordinal)
}

func (b *Block) computeOrder() {
	b.order = nil
	var visit func(op Operation, root bool)
	visit = func(op Operation, root bool) {
		if l, ok := op.(*Logical); ok && l.Left != nil && l.Right != nil {
			visit(l.Left, false)
			at := len(b.order)
			b.order = append(b.order, Step{Op: op, ShortCircuit: true})
			visit(l.Right, false)
			b.order[at].Resume = len(b.order)
			b.order = append(b.order, Step{Op: op, Root: root})
			return
		}
		for _, child := range op.Children() {
			visit(child, false)
		}
		b.order = append(b.order, Step{Op: op, Root: root})
	}

	for _, op := range b.operations {
		visit(op, true)
	}
	if b.branchValue != nil {
		visit(b.branchValue, false)
	}
}

// Branch is a directed edge between two blocks.
type Branch struct {
	source        *Block
	destination   *Block
	semantics     Semantics
	isConditional bool
	entering      []*Region
	leaving       []*Region
	finally       []*Region
}

func (b *Branch) Source() *Block       { return b.source }
func (b *Branch) Semantics() Semantics { return b.semantics }
func (b *Branch) IsConditional() bool  { return b.isConditional }

// Destination is nil for branches resolved by the enclosing regions, i.e.
// throws and the end of finally regions.
func (b *Branch) Destination() *Block { return b.destination }

// EnteringRegions lists the regions entered by the branch, outermost first.
func (b *Branch) EnteringRegions() []*Region { return b.entering }

// LeavingRegions lists the regions left by the branch, innermost first.
func (b *Branch) LeavingRegions() []*Region { return b.leaving }

// FinallyRegions lists the finally regions that run before the destination
// is reached, in execution order.
func (b *Branch) FinallyRegions() []*Region { return b.finally }

func (b *Branch) String() string {
	dst := "?"
	if b.destination != nil {
		dst = b.destination.String()
	}
	return fmt.Sprintf("%s -> %s [%s]", b.source, dst, b.semantics)
}

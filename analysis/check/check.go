// Package check defines the protocol between the exploration engine and
// the rule checks observing it.
package check

import (
	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/state"
)

// Check observes and transforms the states explored by the engine. Hooks
// returning states may return none to prune the path, one to continue it,
// or several to fork it.
type Check interface {
	// Name identifies the rule the check reports.
	Name() string
	// ShouldExecute is a cheap filter deciding whether the check can
	// report anything for the graph.
	ShouldExecute(*cfg.Graph) bool

	PreProcess(*OperationContext) []state.ProgramState
	PostProcess(*OperationContext) []state.ProgramState
	// ConditionEvaluated is called once per successor edge taken from a
	// conditional block.
	ConditionEvaluated(*ConditionContext) []state.ProgramState
	ExitReached(*ExitContext)
	// ExecutionCompleted is called once after exploration ends.
	ExecutionCompleted()
	Findings() []Finding
}

// PartialResults is implemented by checks whose findings remain meaningful
// when the exploration budget was exhausted.
type PartialResults interface {
	Check
	ReportsPartialResults()
}

// LogicalForks is implemented by checks that want short-circuit logical
// operations with an unknown outcome to fork into one state per outcome.
type LogicalForks interface {
	Check
	ForksLogical() bool
}

// OperationContext describes the operation being visited.
type OperationContext struct {
	Graph     *cfg.Graph
	Block     *cfg.Block
	Operation cfg.Operation
	// Root is set for top-level operations of the block.
	Root  bool
	State state.ProgramState
}

// Value is the value the visited operation evaluated to. It is only
// available after intrinsic evaluation.
func (c *OperationContext) Value() (*state.SymbolicValue, bool) {
	return c.State.OperationValue(c.Operation)
}

// ConditionContext describes a branch taken from a conditional block.
type ConditionContext struct {
	Graph     *cfg.Graph
	Block     *cfg.Block
	Condition cfg.Operation
	// Branch is the edge being followed and Truth the value of the
	// condition on it.
	Branch *cfg.Branch
	Truth  bool
	State  state.ProgramState
}

// ExitContext describes a state reaching the exit block.
type ExitContext struct {
	Graph *cfg.Graph
	State state.ProgramState
}

// Base provides pass-through defaults for every hook except Name.
type Base struct{}

func (Base) ShouldExecute(*cfg.Graph) bool { return true }

func (Base) PreProcess(ctx *OperationContext) []state.ProgramState {
	return []state.ProgramState{ctx.State}
}

func (Base) PostProcess(ctx *OperationContext) []state.ProgramState {
	return []state.ProgramState{ctx.State}
}

func (Base) ConditionEvaluated(ctx *ConditionContext) []state.ProgramState {
	return []state.ProgramState{ctx.State}
}

func (Base) ExitReached(*ExitContext) {}
func (Base) ExecutionCompleted()      {}
func (Base) Findings() []Finding      { return nil }

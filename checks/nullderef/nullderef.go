// Package nullderef reports field accesses and method calls on values
// known to be nil.
package nullderef

import (
	"fmt"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/check"
	"github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/cs-au-dk/symex/analysis/state"
)

const Rule = "nullderef"

type Check struct {
	check.Base
	findings check.Findings
}

func New() *Check { return &Check{} }

func (*Check) Name() string { return Rule }

// ForksLogical splits `x != nil && x.f` style conditions so that the
// right operand is evaluated knowing the left one holds.
func (*Check) ForksLogical() bool { return true }

// ReportsPartialResults keeps findings when exploration runs out of budget.
// Each finding is a path on which a nil value was dereferenced, so it holds
// whether or not the rest of the graph was explored.
func (*Check) ReportsPartialResults() {}

// ShouldExecute requires a nil literal or a nil test in the graph.
func (*Check) ShouldExecute(g *cfg.Graph) bool {
	found := false
	for _, op := range g.Operations() {
		cfg.Walk(op, func(op cfg.Operation) bool {
			switch o := op.(type) {
			case *cfg.IsNull:
				found = true
			case *cfg.Literal:
				if o.Value == nil {
					found = true
				}
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

// dereferenced returns the operand whose value must not be nil for op to
// succeed.
func dereferenced(op cfg.Operation) cfg.Operation {
	switch o := op.(type) {
	case *cfg.FieldReference:
		return o.Instance
	case *cfg.Invocation:
		return o.Receiver
	}
	return nil
}

func describe(op cfg.Operation) string {
	if sym, ok := cfg.ReferencedSymbol(op); ok {
		return sym.Name()
	}
	return op.String()
}

// PreProcess runs once the operands of op have been evaluated. A nil
// operand ends the path; any other operand is known to be non-nil after
// the access.
func (c *Check) PreProcess(ctx *check.OperationContext) []state.ProgramState {
	operand := dereferenced(ctx.Operation)
	if operand == nil {
		return []state.ProgramState{ctx.State}
	}
	v, ok := ctx.State.OperationValue(operand)
	if !ok {
		return []state.ProgramState{ctx.State}
	}

	st, ok := ctx.State.Learn(v, constraint.NotNull)
	if !ok {
		c.findings = append(c.findings, check.Finding{
			Rule:    Rule,
			Message: fmt.Sprintf("%s is nil when dereferenced", describe(operand)),
			Pos:     ctx.Operation.Pos(),
		})
		return nil
	}
	return []state.ProgramState{st}
}

func (c *Check) Findings() []check.Finding {
	return c.findings.Dedup()
}

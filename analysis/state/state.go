package state

import (
	"github.com/benbjohnson/immutable"
	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/cs-au-dk/symex/utils"
)

// ProgramState binds symbols and operations to symbolic values, tracks the
// constraints known for each value, and holds a value stack used while
// evaluating operation trees. Every mutation returns a new state; the
// receiver is never modified.
type ProgramState struct {
	symbols     *immutable.Map[cfg.Symbol, *SymbolicValue]
	operations  *immutable.Map[cfg.Operation, *SymbolicValue]
	constraints *immutable.Map[*SymbolicValue, constraint.Set]
	captures    *immutable.Map[int, cfg.Operation]
	preserved   *immutable.Map[cfg.Symbol, struct{}]
	stack       *immutable.List[*SymbolicValue]
}

// Empty creates a state without bindings.
func Empty() ProgramState {
	return ProgramState{
		symbols:     utils.NewIdentityMap[cfg.Symbol, *SymbolicValue](),
		operations:  immutable.NewMap[cfg.Operation, *SymbolicValue](utils.PointerHasher[cfg.Operation]{}),
		constraints: utils.NewIdentityMap[*SymbolicValue, constraint.Set](),
		captures:    immutable.NewMap[int, cfg.Operation](utils.IntHasher[int]{}),
		preserved:   utils.NewIdentityMap[cfg.Symbol, struct{}](),
		stack:       immutable.NewList[*SymbolicValue](),
	}
}

// SymbolValue retrieves the value bound to a symbol.
func (s ProgramState) SymbolValue(sym cfg.Symbol) (*SymbolicValue, bool) {
	return s.symbols.Get(sym)
}

func (s ProgramState) SetSymbolValue(sym cfg.Symbol, v *SymbolicValue) ProgramState {
	s.symbols = s.symbols.Set(sym, v)
	return s
}

// OperationValue retrieves the value an operation evaluated to.
func (s ProgramState) OperationValue(op cfg.Operation) (*SymbolicValue, bool) {
	return s.operations.Get(op)
}

func (s ProgramState) SetOperationValue(op cfg.Operation, v *SymbolicValue) ProgramState {
	s.operations = s.operations.Set(op, v)
	return s
}

// Constraints returns every constraint known for a value.
func (s ProgramState) Constraints(v *SymbolicValue) constraint.Set {
	if v == nil {
		return constraint.Set{}
	}
	cs, _ := s.constraints.Get(v)
	return cs
}

// Constraint returns the constraint of the given kind known for a value.
func (s ProgramState) Constraint(v *SymbolicValue, kind constraint.Kind) (constraint.Constraint, bool) {
	return s.Constraints(v).Get(kind)
}

// SetConstraint replaces the constraint of c's kind on a value.
func (s ProgramState) SetConstraint(v *SymbolicValue, c constraint.Constraint) ProgramState {
	s.constraints = s.constraints.Set(v, s.Constraints(v).With(c))
	return s
}

// RemoveConstraint drops the constraint of a kind from a value.
func (s ProgramState) RemoveConstraint(v *SymbolicValue, kind constraint.Kind) ProgramState {
	cs := s.Constraints(v)
	if _, ok := cs.Get(kind); !ok {
		return s
	}
	s.constraints = s.constraints.Set(v, cs.Without(kind))
	return s
}

// Learn adds c to what is known about v. The result is false when c
// contradicts an existing constraint of the same kind, in which case the
// path is infeasible. Numeric ranges are narrowed by intersection.
func (s ProgramState) Learn(v *SymbolicValue, c constraint.Constraint) (ProgramState, bool) {
	existing, ok := s.Constraint(v, c.Kind())
	if !ok {
		return s.SetConstraint(v, c), true
	}
	if !constraint.Compatible(existing, c) {
		return s, false
	}
	if r1, ok := existing.(constraint.Range); ok {
		if r2, ok := c.(constraint.Range); ok {
			r, _ := r1.Intersect(r2)
			return s.SetConstraint(v, r), true
		}
	}
	return s, true
}

// symbolValueOrFresh binds a fresh value to sym if it has none.
func (s ProgramState) symbolValueOrFresh(sym cfg.Symbol) (ProgramState, *SymbolicValue) {
	if v, ok := s.SymbolValue(sym); ok {
		return s, v
	}
	v := NewValue()
	return s.SetSymbolValue(sym, v), v
}

func (s ProgramState) operationValueOrFresh(op cfg.Operation) (ProgramState, *SymbolicValue) {
	if v, ok := s.OperationValue(op); ok {
		return s, v
	}
	v := NewValue()
	return s.SetOperationValue(op, v), v
}

// SetSymbolConstraint constrains the value of sym, binding a fresh value
// first if needed.
func (s ProgramState) SetSymbolConstraint(sym cfg.Symbol, c constraint.Constraint) ProgramState {
	s, v := s.symbolValueOrFresh(sym)
	return s.SetConstraint(v, c)
}

// SetOperationConstraint constrains the value of op, binding a fresh value
// first if needed.
func (s ProgramState) SetOperationConstraint(op cfg.Operation, c constraint.Constraint) ProgramState {
	s, v := s.operationValueOrFresh(op)
	return s.SetConstraint(v, c)
}

func (s ProgramState) SymbolConstraint(sym cfg.Symbol, kind constraint.Kind) (constraint.Constraint, bool) {
	v, ok := s.SymbolValue(sym)
	if !ok {
		return nil, false
	}
	return s.Constraint(v, kind)
}

func (s ProgramState) OperationConstraint(op cfg.Operation, kind constraint.Kind) (constraint.Constraint, bool) {
	v, ok := s.OperationValue(op)
	if !ok {
		return nil, false
	}
	return s.Constraint(v, kind)
}

// Push places a value on top of the evaluation stack.
func (s ProgramState) Push(v *SymbolicValue) ProgramState {
	s.stack = s.stack.Append(v)
	return s
}

// Pop removes the top of the evaluation stack. Popping an empty stack
// yields a nil value.
func (s ProgramState) Pop() (ProgramState, *SymbolicValue) {
	n := s.stack.Len()
	if n == 0 {
		return s, nil
	}
	v := s.stack.Get(n - 1)
	s.stack = s.stack.Slice(0, n-1)
	return s, v
}

// Peek returns the top of the evaluation stack without removing it.
func (s ProgramState) Peek() *SymbolicValue {
	n := s.stack.Len()
	if n == 0 {
		return nil
	}
	return s.stack.Get(n - 1)
}

func (s ProgramState) StackDepth() int { return s.stack.Len() }

// SetCapture records that flow capture id holds the value of op.
func (s ProgramState) SetCapture(id int, op cfg.Operation) ProgramState {
	s.captures = s.captures.Set(id, op)
	return s
}

// Capture returns the operation recorded for a flow capture.
func (s ProgramState) Capture(id int) (cfg.Operation, bool) {
	return s.captures.Get(id)
}

// ResolveCaptureAndUnwrapConversion follows implicit conversions and flow
// capture references until reaching an operation that is neither.
func (s ProgramState) ResolveCaptureAndUnwrapConversion(op cfg.Operation) cfg.Operation {
	// Bounded by the number of captures so cyclic capture tables terminate.
	for steps := 0; steps <= s.captures.Len()+1; {
		switch o := op.(type) {
		case *cfg.Conversion:
			if !o.Implicit || o.Operand == nil {
				return op
			}
			op = o.Operand
		case *cfg.FlowCaptureReference:
			captured, ok := s.captures.Get(o.ID)
			if !ok {
				return op
			}
			op = captured
			steps++
		case *cfg.FlowCapture:
			if o.Value == nil {
				return op
			}
			op = o.Value
		default:
			return op
		}
	}
	return op
}

// Preserve marks a symbol so that its binding survives symbol cleanup and
// field resets.
func (s ProgramState) Preserve(sym cfg.Symbol) ProgramState {
	s.preserved = s.preserved.Set(sym, struct{}{})
	return s
}

func (s ProgramState) IsPreserved(sym cfg.Symbol) bool {
	_, ok := s.preserved.Get(sym)
	return ok
}

func (s ProgramState) ClearPreserved() ProgramState {
	s.preserved = utils.NewIdentityMap[cfg.Symbol, struct{}]()
	return s
}

// ForgetSymbols unbinds every symbol that is neither kept nor preserved.
func (s ProgramState) ForgetSymbols(keep func(cfg.Symbol) bool) ProgramState {
	symbols := s.symbols
	for it := s.symbols.Iterator(); !it.Done(); {
		sym, _, _ := it.Next()
		if !keep(sym) && !s.IsPreserved(sym) {
			symbols = symbols.Delete(sym)
		}
	}
	s.symbols = symbols
	return s.collect()
}

// ResetFields unbinds every field symbol that is not preserved. Used when
// a call may have modified the heap.
func (s ProgramState) ResetFields() ProgramState {
	return s.ForgetSymbols(func(sym cfg.Symbol) bool {
		return sym.Kind() != cfg.SymbolField
	})
}

// ForgetOperations drops operation values other than those reachable
// through the capture table.
func (s ProgramState) ForgetOperations() ProgramState {
	operations := immutable.NewMap[cfg.Operation, *SymbolicValue](utils.PointerHasher[cfg.Operation]{})
	for it := s.captures.Iterator(); !it.Done(); {
		_, op, _ := it.Next()
		if v, ok := s.operations.Get(op); ok {
			operations = operations.Set(op, v)
		}
	}
	s.operations = operations
	return s.collect()
}

// collect removes constraints of values nothing refers to anymore.
func (s ProgramState) collect() ProgramState {
	used := utils.NewIdentityMap[*SymbolicValue, struct{}]()
	for it := s.symbols.Iterator(); !it.Done(); {
		_, v, _ := it.Next()
		used = used.Set(v, struct{}{})
	}
	for it := s.operations.Iterator(); !it.Done(); {
		_, v, _ := it.Next()
		used = used.Set(v, struct{}{})
	}
	for it := s.stack.Iterator(); !it.Done(); {
		_, v := it.Next()
		used = used.Set(v, struct{}{})
	}

	constraints := s.constraints
	for it := s.constraints.Iterator(); !it.Done(); {
		v, _, _ := it.Next()
		if _, ok := used.Get(v); !ok {
			constraints = constraints.Delete(v)
		}
	}
	s.constraints = constraints
	return s
}

// ForEachSymbol visits bound symbols in identifier order.
func (s ProgramState) ForEachSymbol(do func(cfg.Symbol, *SymbolicValue)) {
	for _, sym := range s.sortedSymbols() {
		v, _ := s.symbols.Get(sym)
		do(sym, v)
	}
}

package symex

import (
	"math"

	"github.com/cs-au-dk/symex/analysis/cfg"
	C "github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/cs-au-dk/symex/analysis/state"
)

// evaluate applies the intrinsic semantics of op: the values of its
// children are popped and exactly one value is pushed for op itself.
func (r *run) evaluate(st state.ProgramState, op cfg.Operation) []state.ProgramState {
	n := len(op.Children())
	vals := make([]*state.SymbolicValue, n)
	for i := n - 1; i >= 0; i-- {
		if st, vals[i] = st.Pop(); vals[i] == nil {
			vals[i] = state.NewValue()
		}
	}
	last := func() *state.SymbolicValue {
		if n == 0 {
			return state.NewValue()
		}
		return vals[n-1]
	}

	var v *state.SymbolicValue
	switch o := op.(type) {
	case *cfg.Literal:
		v = state.NewValue()
		if c, ok := literalConstraint(o.Value); ok {
			st = st.SetConstraint(v, c)
		}
	case *cfg.LocalReference:
		st, v = bind(st, o.Local)
	case *cfg.ParameterReference:
		st, v = bind(st, o.Parameter)
	case *cfg.FieldReference:
		st, v = bind(st, o.Field)
	case *cfg.Assignment:
		v = last()
		if o.Value == nil {
			v = state.NewValue()
		}
		if sym, ok := cfg.ReferencedSymbol(o.Target); ok {
			st = st.SetSymbolValue(sym, v)
		}
	case *cfg.Invocation:
		v = state.NewValue()
		st = st.ResetFields()
	case *cfg.Conversion:
		v = last()
	case *cfg.FlowCapture:
		v = last()
		if o.Value != nil {
			st = st.SetCapture(o.ID, o.Value)
		}
	case *cfg.FlowCaptureReference:
		if resolved := st.ResolveCaptureAndUnwrapConversion(o); resolved != cfg.Operation(o) {
			v, _ = st.OperationValue(resolved)
		}
		if v == nil {
			v = state.NewValue()
		}
	case *cfg.Binary:
		v = state.NewValue()
		if n == 2 {
			if c, ok := binary(st, o.Op, vals[0], vals[1]); ok {
				st = st.SetConstraint(v, c)
			}
		}
	case *cfg.Unary:
		v = state.NewValue()
		if n == 1 {
			if c, ok := unary(st, o.Op, vals[0]); ok {
				st = st.SetConstraint(v, c)
			}
		}
	case *cfg.Logical:
		v = state.NewValue()
		if n == 2 {
			if lb, ok := boolOf(st, vals[0]); ok {
				// Either the left operand decides, or the result is the
				// right operand.
				if lb != o.And {
					v = vals[0]
				} else {
					v = vals[1]
				}
			} else if res, ok := logical(st, o.And, vals[0], vals[1]); ok {
				st = st.SetConstraint(v, C.FromBool(res))
			}
		}
	case *cfg.IsNull:
		v = state.NewValue()
		if n == 1 {
			if res, ok := isNull(st, vals[0]); ok {
				st = st.SetConstraint(v, C.FromBool(res))
			}
		}
	case *cfg.ObjectCreation:
		v = state.NewValue()
		st = st.SetConstraint(v, C.NotNull).SetConstraint(v, C.ObjectCreated)
	case *cfg.CollectionCreation:
		v = state.NewValue()
		st = st.SetConstraint(v, C.NotNull)
		switch {
		case o.Count == 0:
			st = st.SetConstraint(v, C.Empty)
		case o.Count > 0:
			st = st.SetConstraint(v, C.NotEmpty)
		}
	case *cfg.AnonymousFunction, *cfg.LocalFunction:
		v = state.NewValue()
		st = st.SetConstraint(v, C.NotNull)
	case *cfg.Return:
		v = last()
	case *cfg.Throw, *cfg.Unknown:
		v = state.NewValue()
	default:
		v = state.NewValue()
	}

	return []state.ProgramState{st.SetOperationValue(op, v).Push(v)}
}

func bind(st state.ProgramState, sym cfg.Symbol) (state.ProgramState, *state.SymbolicValue) {
	if sym == nil {
		return st, state.NewValue()
	}
	if v, ok := st.SymbolValue(sym); ok {
		return st, v
	}
	v := state.NewValue()
	return st.SetSymbolValue(sym, v), v
}

func literalConstraint(value any) (C.Constraint, bool) {
	switch v := value.(type) {
	case nil:
		return C.Null, true
	case bool:
		return C.FromBool(v), true
	case string:
		return C.NotNull, true
	case int:
		return C.Exact(int64(v)), true
	case int8:
		return C.Exact(int64(v)), true
	case int16:
		return C.Exact(int64(v)), true
	case int32:
		return C.Exact(int64(v)), true
	case int64:
		return C.Exact(v), true
	case uint8:
		return C.Exact(int64(v)), true
	case uint16:
		return C.Exact(int64(v)), true
	case uint32:
		return C.Exact(int64(v)), true
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return C.Exact(int64(v)), true
		}
	case uint64:
		if v <= math.MaxInt64 {
			return C.Exact(int64(v)), true
		}
	}
	return nil, false
}

var relations = map[cfg.BinaryOp]C.Relation{
	cfg.Equal:        C.Eq,
	cfg.NotEqual:     C.Ne,
	cfg.Less:         C.Lt,
	cfg.LessEqual:    C.Le,
	cfg.Greater:      C.Gt,
	cfg.GreaterEqual: C.Ge,
}

func rangeOf(st state.ProgramState, v *state.SymbolicValue) (C.Range, bool) {
	if c, ok := st.Constraint(v, C.KindRange); ok {
		return c.(C.Range), true
	}
	return C.Range{}, false
}

func boolOf(st state.ProgramState, v *state.SymbolicValue) (bool, bool) {
	c, ok := st.Constraint(v, C.KindBool)
	if !ok {
		return false, false
	}
	return C.AsBool(c)
}

func nullOf(st state.ProgramState, v *state.SymbolicValue) (isNull bool, known bool) {
	if c, ok := st.Constraint(v, C.KindNull); ok {
		return c.Equal(C.Null), true
	}
	if _, ok := st.Constraint(v, C.KindObject); ok {
		return false, true
	}
	return false, false
}

func binary(st state.ProgramState, op cfg.BinaryOp, l, r *state.SymbolicValue) (C.Constraint, bool) {
	if op.IsRelational() {
		res, ok := relational(st, op, l, r)
		if !ok {
			return nil, false
		}
		return C.FromBool(res), true
	}

	lr, lok := rangeOf(st, l)
	rr, rok := rangeOf(st, r)
	if !lok || !rok {
		return nil, false
	}
	switch op {
	case cfg.Add:
		return lr.Plus(rr), true
	case cfg.Subtract:
		return lr.Minus(rr), true
	}

	if !lr.IsExact() || !rr.IsExact() {
		return nil, false
	}
	a, b := int64(lr.Low.(C.FiniteBound)), int64(rr.Low.(C.FiniteBound))
	switch op {
	case cfg.Multiply:
		if p := a * b; a == 0 || (p/a == b && !(a == -1 && b == math.MinInt64)) {
			return C.Exact(p), true
		}
	case cfg.Divide:
		if b != 0 && !(a == math.MinInt64 && b == -1) {
			return C.Exact(a / b), true
		}
	}
	return nil, false
}

func relational(st state.ProgramState, op cfg.BinaryOp, l, r *state.SymbolicValue) (bool, bool) {
	if l == r {
		switch op {
		case cfg.Equal, cfg.LessEqual, cfg.GreaterEqual:
			return true, true
		}
		return false, true
	}

	if lr, ok := rangeOf(st, l); ok {
		if rr, ok := rangeOf(st, r); ok {
			return C.Evaluate(relations[op], lr, rr)
		}
	}

	if op != cfg.Equal && op != cfg.NotEqual {
		return false, false
	}
	eq, known := false, false
	if lb, ok := boolOf(st, l); ok {
		if rb, ok := boolOf(st, r); ok {
			eq, known = lb == rb, true
		}
	}
	if ln, ok := nullOf(st, l); !known && ok {
		if rn, ok := nullOf(st, r); ok && (ln || rn) {
			eq, known = ln == rn, true
		}
	}
	if !known {
		_, lnew := st.Constraint(l, C.KindObject)
		_, rnew := st.Constraint(r, C.KindObject)
		if lnew && rnew {
			eq, known = false, true
		}
	}
	if !known {
		return false, false
	}
	if op == cfg.NotEqual {
		eq = !eq
	}
	return eq, true
}

func unary(st state.ProgramState, op cfg.UnaryOp, v *state.SymbolicValue) (C.Constraint, bool) {
	switch op {
	case cfg.Not:
		if b, ok := boolOf(st, v); ok {
			return C.FromBool(!b), true
		}
	case cfg.Negate:
		if r, ok := rangeOf(st, v); ok {
			return r.Negate(), true
		}
	}
	return nil, false
}

func logical(st state.ProgramState, and bool, l, r *state.SymbolicValue) (bool, bool) {
	lb, lok := boolOf(st, l)
	rb, rok := boolOf(st, r)
	switch {
	case lok && lb != and:
		return lb, true
	case rok && rb != and:
		return rb, true
	case lok && rok:
		return and, true
	}
	return false, false
}

func isNull(st state.ProgramState, v *state.SymbolicValue) (bool, bool) {
	return nullOf(st, v)
}

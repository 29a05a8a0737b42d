package symex

import (
	"github.com/cs-au-dk/symex/analysis/cfg"
	C "github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/cs-au-dk/symex/analysis/state"
)

// learnCondition constrains v, the value of the condition op, to truth and
// propagates what that implies to the operands of op. The result is false
// when the path is infeasible.
func (r *run) learnCondition(st state.ProgramState, op cfg.Operation, v *state.SymbolicValue, truth bool) (state.ProgramState, bool) {
	st, ok := st.Learn(v, C.FromBool(truth))
	if !ok || op == nil {
		return st, ok
	}

	operand := func(op cfg.Operation) (cfg.Operation, *state.SymbolicValue, bool) {
		if op == nil {
			return nil, nil, false
		}
		v, ok := st.OperationValue(op)
		return st.ResolveCaptureAndUnwrapConversion(op), v, ok
	}

	switch o := st.ResolveCaptureAndUnwrapConversion(op).(type) {
	case *cfg.Unary:
		if o.Op != cfg.Not {
			break
		}
		if inner, iv, ok := operand(o.Operand); ok {
			return r.learnCondition(st, inner, iv, !truth)
		}

	case *cfg.IsNull:
		if _, ov, ok := operand(o.Operand); ok {
			if truth {
				return st.Learn(ov, C.Null)
			}
			return st.Learn(ov, C.NotNull)
		}

	case *cfg.Logical:
		// Only one outcome of each operator determines both operands.
		if o.And != truth {
			break
		}
		l, lv, lok := operand(o.Left)
		rr, rv, rok := operand(o.Right)
		if lok {
			if st, ok = r.learnCondition(st, l, lv, truth); !ok {
				return st, false
			}
		}
		if rok {
			return r.learnCondition(st, rr, rv, truth)
		}

	case *cfg.Binary:
		if !o.Op.IsRelational() {
			break
		}
		_, lv, lok := operand(o.Left)
		_, rv, rok := operand(o.Right)
		if !lok || !rok {
			break
		}
		rel := relations[o.Op]
		if !truth {
			rel = rel.Negate()
		}
		return learnRelation(st, rel, lv, rv)
	}
	return st, true
}

// learnRelation refines the operands of `l rel r`, known to hold.
func learnRelation(st state.ProgramState, rel C.Relation, l, r *state.SymbolicValue) (state.ProgramState, bool) {
	ok := true
	switch rel {
	case C.Eq, C.Ne:
		ln, lknown := nullOf(st, l)
		rn, rknown := nullOf(st, r)
		switch {
		case rknown && rn:
			st, ok = st.Learn(l, nullness(rel == C.Eq))
		case lknown && ln:
			st, ok = st.Learn(r, nullness(rel == C.Eq))
		}
		if !ok {
			return st, false
		}
		if rel == C.Eq {
			if b, known := boolOf(st, r); known {
				if st, ok = st.Learn(l, C.FromBool(b)); !ok {
					return st, false
				}
			}
			if b, known := boolOf(st, l); known {
				if st, ok = st.Learn(r, C.FromBool(b)); !ok {
					return st, false
				}
			}
		}
	}

	lr, lok := rangeOf(st, l)
	rr, rok := rangeOf(st, r)
	if !lok && !rok {
		return st, true
	}
	if !lok {
		lr = C.Unbounded()
	}
	if !rok {
		rr = C.Unbounded()
	}

	refined, ok := C.Refine(rel, lr, rr)
	if !ok {
		return st, false
	}
	if lok || !refined.Equal(C.Unbounded()) {
		st = st.SetConstraint(l, refined)
	}
	refined, ok = C.Refine(rel.Swap(), rr, lr)
	if !ok {
		return st, false
	}
	if rok || !refined.Equal(C.Unbounded()) {
		st = st.SetConstraint(r, refined)
	}
	return st, true
}

func nullness(null bool) C.Constraint {
	if null {
		return C.Null
	}
	return C.NotNull
}

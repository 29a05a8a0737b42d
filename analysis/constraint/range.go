package constraint

import "github.com/cs-au-dk/symex/utils"

// Range constrains a numeric value to [Low, High]. Wider ranges subsume
// narrower ones.
type Range struct {
	Low, High Bound
}

// Exact is the range containing only n.
func Exact(n int64) Range {
	return Range{FiniteBound(n), FiniteBound(n)}
}

// Between creates a range with finite bounds.
func Between(low, high int64) Range {
	return Range{FiniteBound(low), FiniteBound(high)}
}

// Unbounded is the range of all integers.
func Unbounded() Range {
	return Range{MinusInfinity{}, PlusInfinity{}}
}

func (Range) Kind() Kind { return KindRange }

// Opposite is undefined for ranges.
func (Range) Opposite() (Constraint, bool) { return nil, false }

func (r Range) Equal(c Constraint) bool {
	o, ok := c.(Range)
	return ok && r.Low.Eq(o.Low) && r.High.Eq(o.High)
}

func (r Range) Hash() uint32 {
	return utils.HashCombine(uint32(KindRange), r.Low.hash(), r.High.hash())
}

func (r Range) String() string {
	return "[" + r.Low.String() + ", " + r.High.String() + "]"
}

// IsEmpty is true when the lower bound exceeds the upper bound.
func (r Range) IsEmpty() bool {
	return r.High.Lt(r.Low)
}

// IsExact checks whether the range holds a single value.
func (r Range) IsExact() bool {
	return !r.Low.IsInfinite() && r.Low.Eq(r.High)
}

// Contains checks whether a value in r is in o for every value of r.
func (r Range) Contains(o Range) bool {
	return r.Low.Leq(o.Low) && o.High.Leq(r.High)
}

// Intersect computes the meet of two ranges. The result is false when the
// intersection is empty.
func (r Range) Intersect(o Range) (Range, bool) {
	res := Range{maxBound(r.Low, o.Low), minBound(r.High, o.High)}
	return res, !res.IsEmpty()
}

// Join computes the smallest range containing both ranges.
func (r Range) Join(o Range) Range {
	return Range{minBound(r.Low, o.Low), maxBound(r.High, o.High)}
}

// Plus computes the range of sums.
func (r Range) Plus(o Range) Range {
	return Range{r.Low.Plus(o.Low), r.High.Plus(o.High)}
}

// Negate computes the range of negations.
func (r Range) Negate() Range {
	return Range{r.High.Negate(), r.Low.Negate()}
}

// Minus computes the range of differences.
func (r Range) Minus(o Range) Range {
	return r.Plus(o.Negate())
}

// Relation is a comparison between two numeric values.
type Relation int

const (
	Eq Relation = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (rel Relation) String() string {
	return [...]string{"==", "!=", "<", "<=", ">", ">="}[rel]
}

// Negate returns the relation holding exactly when rel does not.
func (rel Relation) Negate() Relation {
	return [...]Relation{Ne, Eq, Ge, Gt, Le, Lt}[rel]
}

// Swap returns the relation obtained by exchanging the operands.
func (rel Relation) Swap() Relation {
	return [...]Relation{Eq, Ne, Gt, Ge, Lt, Le}[rel]
}

// Evaluate decides `a rel b` for all values of the ranges. The second
// result is false when the relation holds for some values only.
func Evaluate(rel Relation, a, b Range) (holds bool, known bool) {
	switch rel {
	case Eq:
		if a.IsExact() && b.IsExact() && a.Low.Eq(b.Low) {
			return true, true
		}
		if _, ok := a.Intersect(b); !ok {
			return false, true
		}
	case Ne:
		holds, known = Evaluate(Eq, a, b)
		return !holds, known
	case Lt:
		switch {
		case a.High.Lt(b.Low):
			return true, true
		case b.High.Leq(a.Low):
			return false, true
		}
	case Le:
		switch {
		case a.High.Leq(b.Low):
			return true, true
		case b.High.Lt(a.Low):
			return false, true
		}
	case Gt:
		return Evaluate(Lt, b, a)
	case Ge:
		return Evaluate(Le, b, a)
	}
	return false, false
}

// Refine narrows a under the assumption that `a rel b` holds. The result
// is false when the assumption is unsatisfiable.
func Refine(rel Relation, a, b Range) (Range, bool) {
	one := Exact(1)
	switch rel {
	case Eq:
		return a.Intersect(b)
	case Ne:
		if b.IsExact() {
			switch {
			case a.IsExact() && a.Low.Eq(b.Low):
				return a, false
			case a.Low.Eq(b.Low):
				return Range{a.Low.Plus(FiniteBound(1)), a.High}, true
			case a.High.Eq(b.Low):
				return Range{a.Low, a.High.Plus(FiniteBound(-1))}, true
			}
		}
		return a, true
	case Lt:
		return a.Intersect(Range{MinusInfinity{}, b.Minus(one).High})
	case Le:
		return a.Intersect(Range{MinusInfinity{}, b.High})
	case Gt:
		return a.Intersect(Range{b.Plus(one).Low, PlusInfinity{}})
	case Ge:
		return a.Intersect(Range{b.Low, PlusInfinity{}})
	}
	return a, true
}

package constraint

import (
	"math"
	"strconv"
)

// Bound is a possibly infinite limit of a numeric range.
type Bound interface {
	String() string

	// IsInfinite checks whether the bound is infinite.
	IsInfinite() bool

	// Eq checks for bound equality.
	Eq(Bound) bool
	// Leq computes b1 ≤ b2. The semantics is -∞ ≤ c ≤ ∞, where c ∈ ℤ.
	Leq(Bound) bool
	// Lt computes b1 < b2. The semantics is -∞ < c < ∞, where c ∈ ℤ.
	Lt(Bound) bool

	// Plus computes b1 + b2. Adding opposite infinities yields the
	// infinity of the receiver. Finite overflow saturates to an infinity.
	Plus(Bound) Bound
	// Negate computes -b.
	Negate() Bound

	hash() uint32
}

type (
	// FiniteBound is used to represent finite limits of a range.
	FiniteBound int64
	// PlusInfinity represents ∞.
	PlusInfinity struct{}
	// MinusInfinity represents -∞.
	MinusInfinity struct{}
)

func (FiniteBound) IsInfinite() bool   { return false }
func (PlusInfinity) IsInfinite() bool  { return true }
func (MinusInfinity) IsInfinite() bool { return true }

func (b FiniteBound) String() string { return strconv.FormatInt(int64(b), 10) }
func (PlusInfinity) String() string  { return "∞" }
func (MinusInfinity) String() string { return "-∞" }

func (b1 FiniteBound) Eq(b2 Bound) bool {
	b2f, ok := b2.(FiniteBound)
	return ok && b1 == b2f
}

func (PlusInfinity) Eq(b2 Bound) bool {
	_, ok := b2.(PlusInfinity)
	return ok
}

func (MinusInfinity) Eq(b2 Bound) bool {
	_, ok := b2.(MinusInfinity)
	return ok
}

func (b1 FiniteBound) Leq(b2 Bound) bool {
	switch b2 := b2.(type) {
	case FiniteBound:
		return b1 <= b2
	case PlusInfinity:
		return true
	}
	return false
}

func (PlusInfinity) Leq(b2 Bound) bool {
	_, ok := b2.(PlusInfinity)
	return ok
}

func (MinusInfinity) Leq(Bound) bool { return true }

func (b1 FiniteBound) Lt(b2 Bound) bool {
	switch b2 := b2.(type) {
	case FiniteBound:
		return b1 < b2
	case PlusInfinity:
		return true
	}
	return false
}

func (PlusInfinity) Lt(Bound) bool { return false }

func (MinusInfinity) Lt(b2 Bound) bool {
	_, ok := b2.(MinusInfinity)
	return !ok
}

func (b1 FiniteBound) Plus(b2 Bound) Bound {
	switch b2 := b2.(type) {
	case FiniteBound:
		sum := int64(b1) + int64(b2)
		switch {
		case b2 > 0 && sum < int64(b1):
			return PlusInfinity{}
		case b2 < 0 && sum > int64(b1):
			return MinusInfinity{}
		}
		return FiniteBound(sum)
	}
	return b2
}

func (b PlusInfinity) Plus(Bound) Bound  { return b }
func (b MinusInfinity) Plus(Bound) Bound { return b }

func (b FiniteBound) Negate() Bound {
	if b == math.MinInt64 {
		return PlusInfinity{}
	}
	return -b
}

func (PlusInfinity) Negate() Bound  { return MinusInfinity{} }
func (MinusInfinity) Negate() Bound { return PlusInfinity{} }

func (b FiniteBound) hash() uint32 { return uint32(b) ^ uint32(b>>32) }
func (PlusInfinity) hash() uint32  { return 0x7fffffff }
func (MinusInfinity) hash() uint32 { return 0x80000000 }

func minBound(b1, b2 Bound) Bound {
	if b1.Leq(b2) {
		return b1
	}
	return b2
}

func maxBound(b1, b2 Bound) Bound {
	if b1.Leq(b2) {
		return b2
	}
	return b1
}

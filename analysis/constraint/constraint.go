// Package constraint implements the facts the engine learns about
// symbolic values. Each value holds at most one constraint per kind.
package constraint

import (
	"github.com/cs-au-dk/symex/utils"
)

// Kind identifies a constraint domain.
type Kind int

const (
	KindBool Kind = iota
	KindNull
	KindRange
	KindCollection
	KindLock
	KindDisposed
	KindSerialization
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindNull:
		return "Null"
	case KindRange:
		return "NumberRange"
	case KindCollection:
		return "CollectionEmptiness"
	case KindLock:
		return "Lock"
	case KindDisposed:
		return "Disposed"
	case KindSerialization:
		return "Serialization"
	case KindObject:
		return "Object"
	}
	return "Unknown"
}

// Constraint is a fact about a symbolic value within a single domain.
type Constraint interface {
	Kind() Kind
	// Opposite returns the complement within the domain, if the domain
	// is binary.
	Opposite() (Constraint, bool)
	Equal(Constraint) bool
	Hash() uint32
	String() string
}

// Fact is a constraint of a binary (or unary) domain.
type Fact struct {
	kind     Kind
	positive bool
}

var (
	BoolTrue  = Fact{KindBool, true}
	BoolFalse = Fact{KindBool, false}

	Null    = Fact{KindNull, true}
	NotNull = Fact{KindNull, false}

	Empty    = Fact{KindCollection, true}
	NotEmpty = Fact{KindCollection, false}

	LockHeld     = Fact{KindLock, true}
	LockReleased = Fact{KindLock, false}

	Disposed    = Fact{KindDisposed, true}
	NotDisposed = Fact{KindDisposed, false}

	SerializationSafe   = Fact{KindSerialization, true}
	SerializationUnsafe = Fact{KindSerialization, false}

	// ObjectCreated marks values known to be freshly allocated.
	ObjectCreated = Fact{KindObject, true}
)

var factNames = map[Kind][2]string{
	KindBool:          {"False", "True"},
	KindNull:          {"NotNull", "Null"},
	KindCollection:    {"NotEmpty", "Empty"},
	KindLock:          {"LockReleased", "LockHeld"},
	KindDisposed:      {"NotDisposed", "Disposed"},
	KindSerialization: {"SerializationUnsafe", "SerializationSafe"},
	KindObject:        {"", "ObjectCreated"},
}

func (f Fact) Kind() Kind { return f.kind }

// Positive reports which of the two domain values f is. For KindBool this
// is the truth value.
func (f Fact) Positive() bool { return f.positive }

func (f Fact) Opposite() (Constraint, bool) {
	if f.kind == KindObject {
		return nil, false
	}
	return Fact{f.kind, !f.positive}, true
}

func (f Fact) Equal(c Constraint) bool {
	o, ok := c.(Fact)
	return ok && f == o
}

func (f Fact) Hash() uint32 {
	p := uint32(0)
	if f.positive {
		p = 1
	}
	return utils.HashCombine(uint32(f.kind), p)
}

func (f Fact) String() string {
	idx := 0
	if f.positive {
		idx = 1
	}
	return factNames[f.kind][idx]
}

// FromBool converts a truth value to the corresponding Bool constraint.
func FromBool(b bool) Constraint {
	if b {
		return BoolTrue
	}
	return BoolFalse
}

// AsBool extracts the truth value of a Bool constraint.
func AsBool(c Constraint) (value bool, ok bool) {
	f, ok := c.(Fact)
	if !ok || f.kind != KindBool {
		return false, false
	}
	return f.positive, true
}

// Merge combines two constraints of the same kind. Only equal constraints
// merge.
func Merge(a, b Constraint) (Constraint, bool) {
	if a.Equal(b) {
		return a, true
	}
	return nil, false
}

// Compatible checks whether c may be learned about a value already
// constrained by existing. Ranges are compatible when they overlap.
// Constraints of different kinds never contradict.
func Compatible(existing, c Constraint) bool {
	if existing == nil || c == nil || existing.Kind() != c.Kind() {
		return true
	}
	if r1, ok := existing.(Range); ok {
		if r2, ok := c.(Range); ok {
			_, ok := r1.Intersect(r2)
			return ok
		}
	}
	return existing.Equal(c)
}

package utils

import (
	"reflect"

	"github.com/benbjohnson/immutable"
)

type (
	// Hashable is implemented by all hashable types.
	Hashable interface {
		Hash() uint32
	}
	// HashableEq is implemented by all hashable types that can be compared for equality.
	HashableEq[T any] interface {
		Hashable
		Equal(T) bool
	}

	// Identifiable is implemented by entities carrying a process-unique identifier.
	Identifiable interface {
		ID() uint64
	}

	// hashableHasher is a hasher for hashable and equality comparable entities.
	hashableHasher[T HashableEq[T]] struct{}

	// identityHasher hashes identifiable entities by their identifiers.
	identityHasher[T Identifiable] struct{}
)

// Equal checks that two hashable entities a and b are equal.
func (hashableHasher[T]) Equal(a, b T) bool { return a.Equal(b) }

// Hash computes the uint32 hash of hashable entity a.
func (hashableHasher[T]) Hash(a T) uint32 { return a.Hash() }

// HashableHasher is a generic hasher factory of hashable and equality comparable entities.
func HashableHasher[T HashableEq[T]]() immutable.Hasher[T] { return hashableHasher[T]{} }

// Equal checks whether two identifiable entities share an identifier.
func (identityHasher[T]) Equal(a, b T) bool { return a.ID() == b.ID() }

// Hash folds the 64-bit identifier into 32 bits.
func (identityHasher[T]) Hash(a T) uint32 {
	id := a.ID()
	return uint32(id ^ (id >> 32))
}

// IdentityHasher is a generic hasher factory for identifiable entities.
func IdentityHasher[T Identifiable]() immutable.Hasher[T] { return identityHasher[T]{} }

// NewIdentityMap creates an immutable map keyed by identifiable entities.
func NewIdentityMap[K Identifiable, V any]() *immutable.Map[K, V] {
	return immutable.NewMap[K, V](IdentityHasher[K]())
}

// PointerHasher is a generic hasher for pointer-like values.
type PointerHasher[T any] struct{}

// Hash computes the uint32 hash of hashable pointer v.
func (PointerHasher[T]) Hash(v T) uint32 {
	// Use reflection to get a uintptr value
	p := reflect.ValueOf(v).Pointer()
	return uint32(p ^ (p >> 32))
}

// Equal checks equality between two hashable pointers.
func (PointerHasher[T]) Equal(a, b T) bool {
	return any(a) == any(b)
}

var _ immutable.Hasher[any] = PointerHasher[any]{}

// IntHasher hashes integer-like keys.
type IntHasher[T ~int | ~int32 | ~uint32] struct{}

// Hash returns the key itself.
func (IntHasher[T]) Hash(v T) uint32 { return uint32(v) }

// Equal compares keys numerically.
func (IntHasher[T]) Equal(a, b T) bool { return a == b }

// HashCombine uses the C++ boost algorithm for combining multiple hash values.
func HashCombine(hs ...uint32) (seed uint32) {
	for _, v := range hs {
		seed = v + 0x9e3779b9 + (seed << 6) + (seed >> 2)
	}

	return
}

// HashString computes the FNV-1a hash of a string.
func HashString(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Package state implements the persistent program state carried along
// each explored path.
package state

import (
	"fmt"
	"sync/atomic"
)

var valueCounter uint64

// SymbolicValue is an opaque value identity. Two values are the same value
// only if they are the same object.
type SymbolicValue struct {
	id uint64
}

// NewValue creates a fresh symbolic value.
func NewValue() *SymbolicValue {
	return &SymbolicValue{atomic.AddUint64(&valueCounter, 1)}
}

func (v *SymbolicValue) ID() uint64 { return v.id }

func (v *SymbolicValue) String() string { return fmt.Sprintf("v%d", v.id) }

package cfg

import (
	"fmt"
	"sync/atomic"
)

// SymbolKind classifies symbols referenced by operations.
type SymbolKind int

const (
	SymbolLocal SymbolKind = iota
	SymbolParameter
	SymbolField
	SymbolMethod
	SymbolFunction
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolLocal:
		return "local"
	case SymbolParameter:
		return "parameter"
	case SymbolField:
		return "field"
	case SymbolMethod:
		return "method"
	case SymbolFunction:
		return "function"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Symbol is a named program entity. Symbols are compared by identity.
type Symbol interface {
	Name() string
	Kind() SymbolKind
	ID() uint64
}

var symbolCounter uint64

// Var is the concrete symbol produced by the builders in this package.
type Var struct {
	name string
	kind SymbolKind
	id   uint64
}

// NewVar creates a symbol with a fresh identity.
func NewVar(name string, kind SymbolKind) *Var {
	return &Var{
		name: name,
		kind: kind,
		id:   atomic.AddUint64(&symbolCounter, 1),
	}
}

func (v *Var) Name() string     { return v.name }
func (v *Var) Kind() SymbolKind { return v.kind }
func (v *Var) ID() uint64       { return v.id }
func (v *Var) String() string   { return v.name }

package cfg

import "fmt"

type RegionKind int

const (
	RegionRoot RegionKind = iota
	RegionTry
	RegionCatch
	RegionFinally
	RegionFilter
	RegionTryAndCatch
	RegionTryAndFinally
	RegionLocalLifetime
)

var regionKindNames = [...]string{
	RegionRoot:          "Root",
	RegionTry:           "Try",
	RegionCatch:         "Catch",
	RegionFinally:       "Finally",
	RegionFilter:        "Filter",
	RegionTryAndCatch:   "TryAndCatch",
	RegionTryAndFinally: "TryAndFinally",
	RegionLocalLifetime: "LocalLifetime",
}

func (k RegionKind) String() string {
	if k >= 0 && int(k) < len(regionKindNames) {
		return regionKindNames[k]
	}
	return fmt.Sprintf("RegionKind(%d)", int(k))
}

// IsHandler is true for regions entered when an exception is raised.
func (k RegionKind) IsHandler() bool {
	return k == RegionCatch || k == RegionFilter || k == RegionFinally
}

// Region is a lexical scope spanning a contiguous range of blocks.
type Region struct {
	kind           RegionKind
	first, last    int
	parent         *Region
	nested         []*Region
	locals         []Symbol
	localFunctions []*LocalFunction
}

func (r *Region) Kind() RegionKind                 { return r.kind }
func (r *Region) FirstBlockOrdinal() int           { return r.first }
func (r *Region) LastBlockOrdinal() int            { return r.last }
func (r *Region) Parent() *Region                  { return r.parent }
func (r *Region) Nested() []*Region                { return r.nested }
func (r *Region) Locals() []Symbol                 { return r.locals }
func (r *Region) LocalFunctions() []*LocalFunction { return r.localFunctions }

// Contains checks whether the block with the given ordinal is in the region.
func (r *Region) Contains(ordinal int) bool {
	return r.first <= ordinal && ordinal <= r.last
}

// Encloses is true if other is r or is nested inside r.
func (r *Region) Encloses(other *Region) bool {
	for ; other != nil; other = other.parent {
		if other == r {
			return true
		}
	}
	return false
}

// Sibling returns the region of the given kind sharing r's parent.
func (r *Region) Sibling(kind RegionKind) *Region {
	if r.parent == nil {
		return nil
	}
	for _, n := range r.parent.nested {
		if n != r && n.kind == kind {
			return n
		}
	}
	return nil
}

func (r *Region) String() string {
	return fmt.Sprintf("%s[%d..%d]", r.kind, r.first, r.last)
}

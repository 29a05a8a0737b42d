package constraint

import (
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cs-au-dk/symex/utils"
)

// Set is a persistent map from kind to constraint. The zero value is the
// empty set.
type Set struct {
	mp *immutable.Map[Kind, Constraint]
}

// NewSet creates a set holding the given constraints. Later constraints
// replace earlier ones of the same kind.
func NewSet(cs ...Constraint) Set {
	s := Set{}
	for _, c := range cs {
		s = s.With(c)
	}
	return s
}

func (s Set) Len() int {
	if s.mp == nil {
		return 0
	}
	return s.mp.Len()
}

func (s Set) Get(kind Kind) (Constraint, bool) {
	if s.mp == nil {
		return nil, false
	}
	return s.mp.Get(kind)
}

// With returns a set where c replaces any constraint of the same kind.
func (s Set) With(c Constraint) Set {
	mp := s.mp
	if mp == nil {
		mp = immutable.NewMap[Kind, Constraint](utils.IntHasher[Kind]{})
	}
	return Set{mp.Set(c.Kind(), c)}
}

func (s Set) Without(kind Kind) Set {
	if s.mp == nil {
		return s
	}
	return Set{s.mp.Delete(kind)}
}

// ForEach visits constraints in kind order.
func (s Set) ForEach(do func(Constraint)) {
	for _, k := range s.kinds() {
		c, _ := s.mp.Get(k)
		do(c)
	}
}

func (s Set) kinds() []Kind {
	if s.mp == nil {
		return nil
	}
	ks := make([]Kind, 0, s.mp.Len())
	for it := s.mp.Iterator(); !it.Done(); {
		k, _, _ := it.Next()
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}

func (s Set) Hash() uint32 {
	var h uint32
	if s.mp == nil {
		return h
	}
	for it := s.mp.Iterator(); !it.Done(); {
		_, c, _ := it.Next()
		h += c.Hash()
	}
	return h
}

func (s Set) Equal(o Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	if s.mp == nil {
		return true
	}
	for it := s.mp.Iterator(); !it.Done(); {
		k, c, _ := it.Next()
		oc, ok := o.Get(k)
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

func (s Set) String() string {
	strs := make([]string, 0, s.Len())
	s.ForEach(func(c Constraint) {
		strs = append(strs, c.String())
	})
	return "{" + strings.Join(strs, ", ") + "}"
}

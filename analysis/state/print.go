package state

import (
	"fmt"
	"sort"
	"strings"
)

// String renders the symbol bindings, the evaluation stack, and preserved
// symbols. Values are numbered in order of first appearance so that the
// output does not depend on value identities.
func (s ProgramState) String() string {
	syms := s.sortedSymbols()
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Name() < syms[j].Name() })

	names := make(map[uint64]int)
	name := func(v *SymbolicValue) string {
		idx, ok := names[v.ID()]
		if !ok {
			idx = len(names)
			names[v.ID()] = idx
		}
		return fmt.Sprintf("#%d", idx)
	}

	var sb strings.Builder
	for _, sym := range syms {
		v, _ := s.symbols.Get(sym)
		fmt.Fprintf(&sb, "%s = %s %s\n", sym.Name(), name(v), s.Constraints(v))
	}

	stack := make([]string, 0, s.stack.Len())
	for it := s.stack.Iterator(); !it.Done(); {
		_, v := it.Next()
		stack = append(stack, name(v)+" "+s.Constraints(v).String())
	}
	fmt.Fprintf(&sb, "stack: [%s]\n", strings.Join(stack, ", "))

	var preserved []string
	for _, sym := range syms {
		if s.IsPreserved(sym) {
			preserved = append(preserved, sym.Name())
		}
	}
	if len(preserved) > 0 {
		fmt.Fprintf(&sb, "preserved: %s\n", strings.Join(preserved, ", "))
	}
	return sb.String()
}

var _ fmt.Stringer = ProgramState{}

package livevars

import (
	"github.com/cs-au-dk/symex/analysis/cfg"
)

// blockUses computes the symbols a block reads before writing them (gen)
// and the symbols it writes (kill), following the evaluation order of its
// operations.
func blockUses(b *cfg.Block) (gen, kill map[cfg.Symbol]bool) {
	gen = make(map[cfg.Symbol]bool)
	kill = make(map[cfg.Symbol]bool)

	// References in assignment target position are writes, not reads.
	targets := make(map[cfg.Operation]bool)
	collect := func(op cfg.Operation) bool {
		if asg, ok := op.(*cfg.Assignment); ok && isDirect(asg.Target) {
			targets[asg.Target] = true
		}
		return true
	}
	for _, op := range b.Operations() {
		cfg.Walk(op, collect)
	}
	if bv := b.BranchValue(); bv != nil {
		cfg.Walk(bv, collect)
	}

	for _, step := range b.ExecutionOrder() {
		if step.ShortCircuit {
			continue
		}
		switch op := step.Op.(type) {
		case *cfg.Assignment:
			if sym, ok := cfg.ReferencedSymbol(op.Target); ok && targets[op.Target] {
				kill[sym] = true
			}
		default:
			if targets[op] {
				continue
			}
			if !isDirect(op) {
				continue
			}
			if sym, ok := cfg.ReferencedSymbol(op); ok && !kill[sym] {
				gen[sym] = true
			}
		}
	}
	return
}

func isDirect(op cfg.Operation) bool {
	switch op.(type) {
	case *cfg.LocalReference, *cfg.ParameterReference:
		return true
	}
	return false
}

package symex

import (
	"time"

	"github.com/cs-au-dk/symex/analysis/check"
)

// Result summarizes an exploration.
type Result struct {
	Findings check.Findings
	// Failed lists the checks disabled after a hook failure.
	Failed []string

	Steps            int
	VisitedStates    int
	PrunedInfeasible int
	PrunedRevisits   int
	// Skipped is set when no check wanted to execute on the graph.
	Skipped   bool
	Exhausted bool
	Cancelled bool
	Duration  time.Duration

	visited map[int]bool
}

// Visited checks whether exploration reached the block with the given
// ordinal.
func (r Result) Visited(ordinal int) bool {
	return r.visited[ordinal]
}

// VisitedBlocks counts the distinct blocks reached.
func (r Result) VisitedBlocks() int {
	return len(r.visited)
}

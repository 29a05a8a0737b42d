package main

import (
	"fmt"
	"io"
	"time"
)

// printMetrics summarizes the exploration of every function, followed by
// totals.
func printMetrics(w io.Writer, outcomes []outcome) {
	if len(outcomes) == 0 {
		return
	}

	var (
		steps, states, infeasible, revisits int
		exhausted, skipped, failed          int
		total                               time.Duration
	)

	fmt.Fprint(w, "================ Results =====================\n\n")
	for _, out := range outcomes {
		fmt.Fprintln(w, "Function:", out.fun.String())

		if out.err != nil {
			failed++
			fmt.Fprintf(w, "Outcome: failed\n%v\n\n", out.err)
			continue
		}

		r := out.result
		if r.Skipped {
			skipped++
			fmt.Fprint(w, "Outcome: skipped\n\n")
			continue
		}

		status := "complete"
		if r.Exhausted {
			exhausted++
			status = "exhausted"
		}
		fmt.Fprintln(w, "Outcome:", status)
		fmt.Fprintf(w, "Time: %s\n", r.Duration)
		fmt.Fprintf(w, "Blocks: %d/%d\n", r.VisitedBlocks(), len(out.graph.Blocks()))
		fmt.Fprintf(w, "Steps: %d, states: %d, pruned: %d infeasible, %d revisits\n",
			r.Steps, r.VisitedStates, r.PrunedInfeasible, r.PrunedRevisits)
		if len(r.Failed) > 0 {
			fmt.Fprintln(w, "Disabled checks:", r.Failed)
		}
		fmt.Fprintln(w)

		steps += r.Steps
		states += r.VisitedStates
		infeasible += r.PrunedInfeasible
		revisits += r.PrunedRevisits
		total += r.Duration
	}

	fmt.Fprint(w, "================ Totals ======================\n\n")
	fmt.Fprintf(w, "Functions: %d (%d skipped, %d exhausted, %d failed)\n",
		len(outcomes), skipped, exhausted, failed)
	fmt.Fprintf(w, "Steps: %d, states: %d, pruned: %d infeasible, %d revisits\n",
		steps, states, infeasible, revisits)
	fmt.Fprintf(w, "Time: %s\n", total)
}

package cfg

import (
	"fmt"
	"strings"
)

// String dumps the blocks, their operations and edges.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %s\n", g.name)
	for _, blk := range g.blocks {
		writeBlock(&sb, blk)
	}
	return sb.String()
}

func writeBlock(sb *strings.Builder, blk *Block) {
	sb.WriteString(blk.String())
	if r := blk.region; r != nil && r.kind != RegionRoot {
		fmt.Fprintf(sb, " in %s", r)
	}
	if !blk.reachable {
		sb.WriteString(" (unreachable)")
	}
	sb.WriteString("\n")

	if len(blk.predecessors) > 0 {
		preds := make([]string, len(blk.predecessors))
		for i, p := range blk.predecessors {
			preds[i] = p.String()
		}
		fmt.Fprintf(sb, "  preds: %s\n", strings.Join(preds, ", "))
	}

	for _, op := range blk.operations {
		fmt.Fprintf(sb, "  %s\n", op)
	}

	if blk.conditional != nil {
		fmt.Fprintf(sb, "  if %s %s %s\n", blk.branchValue, blk.conditionKind, branchString(blk.conditional))
		fmt.Fprintf(sb, "  else %s\n", branchString(blk.fallThrough))
	} else if blk.fallThrough != nil {
		fmt.Fprintf(sb, "  %s\n", branchString(blk.fallThrough))
	}
}

func branchString(br *Branch) string {
	dst := "?"
	if br.destination != nil {
		dst = br.destination.String()
	}

	str := "-> " + dst
	if br.semantics != Regular {
		str += " [" + br.semantics.String() + "]"
	}
	if len(br.leaving) > 0 {
		str += " leaving " + regionList(br.leaving)
	}
	if len(br.entering) > 0 {
		str += " entering " + regionList(br.entering)
	}
	if len(br.finally) > 0 {
		str += " finally " + regionList(br.finally)
	}
	return str
}

func regionList(rs []*Region) string {
	strs := make([]string, len(rs))
	for i, r := range rs {
		strs[i] = r.String()
	}
	return strings.Join(strs, ", ")
}

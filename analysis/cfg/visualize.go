package cfg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cs-au-dk/symex/utils/dot"
)

// ToDot creates a Dot Graph representing the CFG. Regions become clusters
// and the edges of conditional blocks are labeled with the truth value
// taking them.
func (g *Graph) ToDot() *dot.DotGraph {
	G := &dot.DotGraph{
		Name:  g.name,
		Title: g.name,
		Options: map[string]string{
			"rankdir": "TB",
		},
	}

	nodes := make([]*dot.DotNode, len(g.blocks))
	for i, blk := range g.blocks {
		lines := []string{blk.String()}
		for _, op := range blk.operations {
			lines = append(lines, op.String())
		}
		if blk.branchValue != nil {
			lines = append(lines, "if "+blk.branchValue.String())
		}

		attrs := dot.DotAttrs{"label": strings.Join(lines, "\\l") + "\\l"}
		switch {
		case !blk.reachable:
			attrs["fillcolor"] = "lightgray"
		case blk.kind != Normal:
			attrs["fillcolor"] = "lightblue"
		}
		nodes[i] = &dot.DotNode{ID: strconv.Itoa(blk.ordinal), Attrs: attrs}
	}

	var cluster func(r *Region, id string) *dot.DotCluster
	cluster = func(r *Region, id string) *dot.DotCluster {
		c := dot.NewDotCluster(id)
		c.Attrs["label"] = r.String()
		c.Attrs["style"] = "dashed"
		for o := r.first; o <= r.last; o++ {
			if g.blocks[o].region == r {
				c.Nodes = append(c.Nodes, nodes[o])
			}
		}
		for i, n := range r.nested {
			nid := fmt.Sprintf("%s_%d", id, i)
			c.Clusters[nid] = cluster(n, nid)
		}
		return c
	}

	for _, blk := range g.blocks {
		if blk.region == g.root {
			G.Nodes = append(G.Nodes, nodes[blk.ordinal])
		}
	}
	for i, r := range g.root.nested {
		G.Clusters = append(G.Clusters, cluster(r, strconv.Itoa(i)))
	}

	for _, blk := range g.blocks {
		for _, br := range blk.Successors() {
			if br.destination == nil {
				continue
			}

			attrs := dot.DotAttrs{}
			if blk.conditional != nil {
				taken := br.isConditional == (blk.conditionKind == WhenTrue)
				if taken {
					attrs["label"] = "T"
				} else {
					attrs["label"] = "F"
				}
			}
			if br.semantics != Regular {
				attrs["style"] = "dashed"
				attrs["xlabel"] = br.semantics.String()
			}

			G.Edges = append(G.Edges, &dot.DotEdge{
				From:  nodes[blk.ordinal],
				To:    nodes[br.destination.ordinal],
				Attrs: attrs,
			})
		}
	}

	return G
}

package testutil

import (
	"fmt"

	"github.com/cs-au-dk/symex/analysis/cfg"
)

// Chain builds a straight-line graph of n blocks, each holding one call to
// a method named after its position.
func Chain(n int) *cfg.Graph {
	b := cfg.NewBuilder(fmt.Sprintf("chain%d", n))
	for i := 0; i < n; i++ {
		b.Add(b.Block(), &cfg.Invocation{Method: fmt.Sprintf("f%d", i)})
	}
	return mustBuild(b)
}

// Loop builds a graph of the shape `while (x) { x = f(x) }`, where the body
// is spread over n-1 blocks. The header block is B1.
func Loop(n int) (*cfg.Graph, *cfg.Var) {
	x := cfg.NewVar("x", cfg.SymbolParameter)
	b := cfg.NewBuilder(fmt.Sprintf("loop%d", n))

	header := b.Block()
	var body []*cfg.Block
	for i := 1; i < n; i++ {
		blk := b.Block()
		b.Add(blk, &cfg.Assignment{
			Target: &cfg.ParameterReference{Parameter: x},
			Value: &cfg.Invocation{
				Method: "f",
				Args:   []cfg.Operation{&cfg.ParameterReference{Parameter: x}},
			},
		})
		body = append(body, blk)
	}

	if len(body) == 0 {
		b.Branch(header, &cfg.ParameterReference{Parameter: x}, header, b.Exit())
		return mustBuild(b), x
	}

	b.Branch(header, &cfg.ParameterReference{Parameter: x}, body[0], b.Exit())
	b.Jump(body[len(body)-1], header, cfg.Regular)
	return mustBuild(b), x
}

// Fork builds the graph B -> C | D, where B branches on the parameter cond
// and C is the conditional successor. C and D each invoke a method named
// after themselves.
func Fork() (g *cfg.Graph, cond *cfg.Var, B, C, D *cfg.Block) {
	cond = cfg.NewVar("cond", cfg.SymbolParameter)
	b := cfg.NewBuilder("fork")

	B, C, D = b.Block(), b.Block(), b.Block()
	b.Branch(B, &cfg.ParameterReference{Parameter: cond}, C, D)
	b.Add(C, &cfg.Invocation{Method: "C"})
	b.Jump(C, b.Exit(), cfg.Regular)
	b.Add(D, &cfg.Invocation{Method: "D"})

	return mustBuild(b), cond, B, C, D
}

func mustBuild(b *cfg.Builder) *cfg.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

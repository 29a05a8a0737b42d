package symex

import (
	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/state"
	"github.com/cs-au-dk/symex/utils"
	"github.com/cs-au-dk/symex/utils/pq"
	"github.com/cs-au-dk/symex/utils/worklist"
)

// item is a pending visit of the step at index in block.
type item struct {
	block *cfg.Block
	index int
	state state.ProgramState
	conts *continuation
	seq   int
}

// continuation records a branch whose destination is reached once the
// finally region being executed completes. next indexes the next finally
// region of the branch to run.
type continuation struct {
	branch *cfg.Branch
	next   int
	parent *continuation
}

func (c *continuation) hash() (h uint32) {
	for ; c != nil; c = c.parent {
		h = utils.HashCombine(h, uint32(c.branch.Source().Ordinal()), uint32(c.next))
		if dst := c.branch.Destination(); dst != nil {
			h = utils.HashCombine(h, uint32(dst.Ordinal()))
		}
	}
	return
}

func (c *continuation) equal(o *continuation) bool {
	for ; c != nil && o != nil; c, o = c.parent, o.parent {
		if c.branch != o.branch || c.next != o.next {
			return false
		}
	}
	return c == nil && o == nil
}

type agenda interface {
	Add(item)
	GetNext() item
	IsEmpty() bool
}

func newAgenda(s Strategy) agenda {
	switch s {
	case ByOrdinal:
		q := pq.Empty[item](func(a, b item) bool {
			if a.block.Ordinal() != b.block.Ordinal() {
				return a.block.Ordinal() < b.block.Ordinal()
			}
			return a.seq < b.seq
		})
		return &q
	}
	s2 := worklist.EmptyStack[item]()
	return &s2
}

// visitKey identifies an explored state at the start of a block.
type visitKey struct {
	block  *cfg.Block
	digest state.Digest
	conts  *continuation
}

func (k visitKey) Hash() uint32 {
	return utils.HashCombine(uint32(k.block.Ordinal()), k.digest.Hash(), k.conts.hash())
}

func (k visitKey) Equal(o visitKey) bool {
	return k.block == o.block && k.digest.Equal(o.digest) && k.conts.equal(o.conts)
}

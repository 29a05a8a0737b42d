// Package symex explores the states of a control-flow graph on behalf of
// rule checks.
package symex

import (
	"context"
	"time"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/check"
	"github.com/cs-au-dk/symex/analysis/constraint"
	"github.com/cs-au-dk/symex/analysis/livevars"
	"github.com/cs-au-dk/symex/analysis/state"
	"github.com/cs-au-dk/symex/utils"
	"github.com/cs-au-dk/symex/utils/hmap"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrInternal is returned when exploration itself fails unexpectedly.
var ErrInternal = errors.New("symex: internal error")

// Engine explores a single graph. Engines are not safe for concurrent use,
// but distinct engines may run concurrently.
type Engine struct {
	Graph  *cfg.Graph
	Checks []check.Check
	Config Config
	Logger *zap.SugaredLogger
}

// New creates an engine exploring g for checks, starting from DefaultConfig.
func New(g *cfg.Graph, checks []check.Check, opts ...Option) *Engine {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Engine{
		Graph:  g,
		Checks: checks,
		Config: config,
		Logger: config.Logger,
	}
}

type registered struct {
	check.Check
	alive bool
}

type run struct {
	*Engine
	ctx         context.Context
	checks      []*registered
	forkLogical bool

	live     *livevars.Liveness
	agenda   agenda
	visited  *hmap.Map[visitKey, bool]
	perBlock map[*cfg.Block]int
	seq      int

	res Result
}

// Run explores the graph until no work is left or the budget is exhausted.
// On cancellation no findings are returned.
func (e *Engine) Run(ctx context.Context) (res Result, err error) {
	start := time.Now()
	r := &run{
		Engine:   e,
		ctx:      ctx,
		agenda:   newAgenda(e.Config.Strategy),
		visited:  hmap.NewMap[bool](utils.HashableHasher[visitKey]()),
		perBlock: make(map[*cfg.Block]int),
		res:      Result{visited: make(map[int]bool)},
	}
	defer func() {
		if p := recover(); p != nil {
			e.Logger.Errorw("exploration aborted", "graph", e.Graph.Name(), "panic", p)
			res, err = Result{Duration: time.Since(start)}, errors.Wrapf(ErrInternal, "%s: %v", e.Graph.Name(), p)
		}
	}()

	for _, c := range e.Checks {
		reg := &registered{Check: c, alive: true}
		should := false
		if !r.call(reg, "ShouldExecute", func() { should = c.ShouldExecute(e.Graph) }) || !should {
			continue
		}
		if lf, ok := c.(check.LogicalForks); ok && lf.ForksLogical() {
			r.forkLogical = true
		}
		r.checks = append(r.checks, reg)
	}
	if len(e.Checks) > 0 && len(r.checks) == 0 {
		r.res.Skipped = true
		r.res.Duration = time.Since(start)
		return r.res, nil
	}

	r.live = livevars.LiveVars(e.Graph)
	if err := r.explore(); err != nil {
		e.Logger.Infow("exploration cancelled", "graph", e.Graph.Name(), "steps", r.res.Steps)
		return Result{Cancelled: true, Steps: r.res.Steps, Duration: time.Since(start), visited: r.res.visited}, err
	}

	r.complete()
	r.res.Duration = time.Since(start)
	return r.res, nil
}

func (r *run) explore() error {
	initial := state.Empty()
	if r.Config.InitialState != nil {
		initial = *r.Config.InitialState
	}
	r.enqueue(r.Graph.Entry(), initial, nil)

	for !r.agenda.IsEmpty() {
		if err := r.ctx.Err(); err != nil {
			return errors.Wrapf(err, "symex: exploring %s", r.Graph.Name())
		}

		it := r.agenda.GetNext()
		if it.index == 0 {
			r.res.visited[it.block.Ordinal()] = true
			r.enterHandlers(it)
		}

		steps := it.block.ExecutionOrder()
		if it.index >= len(steps) {
			r.blockEnd(it)
			continue
		}

		r.res.Steps++
		if r.Config.MaxSteps > 0 && r.res.Steps > r.Config.MaxSteps {
			r.res.Steps--
			r.exhaust("steps")
			return nil
		}
		if step := steps[it.index]; step.ShortCircuit {
			r.shortCircuit(it, step)
		} else {
			r.visit(it, step)
		}
	}
	return nil
}

func (r *run) exhaust(budget string) {
	if !r.res.Exhausted {
		r.Logger.Infow("exploration budget exhausted",
			"graph", r.Graph.Name(),
			"budget", budget,
			"steps", r.res.Steps)
	}
	r.res.Exhausted = true
}

func (r *run) add(it item) {
	r.seq++
	it.seq = r.seq
	r.agenda.Add(it)
}

// enqueue schedules a block start unless an equivalent state was already
// explored there. States reaching the exit are never merged.
func (r *run) enqueue(b *cfg.Block, st state.ProgramState, conts *continuation) {
	if b.Kind() == cfg.Exit {
		r.add(item{block: b, state: st, conts: conts})
		return
	}

	live := r.live.Live(b)
	st = st.ForgetOperations().ForgetSymbols(live)
	key := visitKey{b, st.Digest(live), conts}
	if _, seen := r.visited.GetOk(key); seen {
		r.res.PrunedRevisits++
		return
	}
	if limit := r.Config.MaxStatesPerBlock; limit > 0 && r.perBlock[b] >= limit {
		r.exhaust("states per block")
		return
	}

	r.visited.Set(key, true)
	r.perBlock[b]++
	r.res.VisitedStates++
	r.add(item{block: b, state: st, conts: conts})
}

// enterHandlers forks into the catch and filter handlers of every try
// region starting at the block.
func (r *run) enterHandlers(it item) {
	for reg := it.block.Region(); reg != nil; reg = reg.Parent() {
		if reg.Kind() != cfg.RegionTry || reg.FirstBlockOrdinal() != it.block.Ordinal() {
			continue
		}
		for _, h := range reg.Parent().Nested() {
			switch h.Kind() {
			case cfg.RegionCatch, cfg.RegionFilter:
				r.enqueue(r.Graph.BlockAt(h.FirstBlockOrdinal()), it.state, it.conts)
			}
		}
	}
}

func (r *run) visit(it item, step cfg.Step) {
	r.Logger.Debugw("visit", "block", it.block, "index", it.index, "op", step.Op)

	octx := &check.OperationContext{
		Graph:     r.Graph,
		Block:     it.block,
		Operation: step.Op,
		Root:      step.Root,
		State:     it.state,
	}
	pre := r.chain("PreProcess", []state.ProgramState{it.state}, func(c check.Check, st state.ProgramState) []state.ProgramState {
		ctx := *octx
		ctx.State = st
		return c.PreProcess(&ctx)
	})

	var evaluated []state.ProgramState
	for _, st := range pre {
		evaluated = append(evaluated, r.evaluate(st, step.Op)...)
	}

	post := r.chain("PostProcess", evaluated, func(c check.Check, st state.ProgramState) []state.ProgramState {
		ctx := *octx
		ctx.State = st
		return c.PostProcess(&ctx)
	})

	for _, st := range post {
		if step.Root {
			st, _ = st.Pop()
		}
		r.add(item{block: it.block, index: it.index + 1, state: st, conts: it.conts})
	}
}

// shortCircuit runs once the left operand of a logical operation has been
// evaluated. Paths on which the left operand decides the operation skip the
// right operand and reuse the left value in its place. Unknown left operands
// fork only when a check asks for it.
func (r *run) shortCircuit(it item, step cfg.Step) {
	op := step.Op.(*cfg.Logical)
	lv := it.state.Peek()

	resume := func(st state.ProgramState, decided bool) {
		next := item{block: it.block, index: it.index + 1, state: st, conts: it.conts}
		if decided {
			next.index, next.state = step.Resume, st.Push(lv)
		}
		r.add(next)
	}

	if lv == nil {
		resume(it.state, false)
		return
	}
	if b, ok := boolOf(it.state, lv); ok {
		resume(it.state, b != op.And)
		return
	}
	if !r.forkLogical {
		resume(it.state, false)
		return
	}

	for _, truth := range []bool{op.And, !op.And} {
		st, ok := r.learnCondition(it.state, op.Left, lv, truth)
		if !ok {
			r.res.PrunedInfeasible++
			continue
		}
		resume(st, truth != op.And)
	}
}

// blockEnd follows the successors of a block once all of its steps have
// been evaluated.
func (r *run) blockEnd(it item) {
	b, st := it.block, it.state

	if b.Kind() == cfg.Exit {
		for _, c := range r.checks {
			if c.alive {
				r.call(c, "ExitReached", func() {
					c.ExitReached(&check.ExitContext{Graph: r.Graph, State: st})
				})
			}
		}
		return
	}

	if !b.IsConditional() {
		if ft := b.FallThrough(); ft != nil {
			r.follow(ft, 0, st, it.conts)
		}
		return
	}

	st, v := st.Pop()
	if v == nil {
		v = state.NewValue()
	}
	known, decided := false, false
	if c, ok := st.Constraint(v, constraint.KindBool); ok {
		known, decided = constraint.AsBool(c)
	}

	whenTrue := b.ConditionKind() == cfg.WhenTrue
	edges := []struct {
		branch *cfg.Branch
		truth  bool
	}{
		{b.Conditional(), whenTrue},
		{b.FallThrough(), !whenTrue},
	}

	for _, edge := range edges {
		if edge.branch == nil || (decided && known != edge.truth) {
			continue
		}

		taken := st
		if !decided {
			var ok bool
			if taken, ok = r.learnCondition(st, b.BranchValue(), v, edge.truth); !ok {
				r.res.PrunedInfeasible++
				continue
			}
		}

		states := r.chain("ConditionEvaluated", []state.ProgramState{taken}, func(c check.Check, st state.ProgramState) []state.ProgramState {
			return c.ConditionEvaluated(&check.ConditionContext{
				Graph:     r.Graph,
				Block:     b,
				Condition: b.BranchValue(),
				Branch:    edge.branch,
				Truth:     edge.truth,
				State:     st,
			})
		})
		if len(states) == 0 {
			r.res.PrunedInfeasible++
		}
		for _, st := range states {
			r.follow(edge.branch, 0, st, it.conts)
		}
	}
}

// follow takes a branch, running the finally regions it leaves first.
func (r *run) follow(br *cfg.Branch, next int, st state.ProgramState, conts *continuation) {
	if fin := br.FinallyRegions(); next < len(fin) {
		first := r.Graph.BlockAt(fin[next].FirstBlockOrdinal())
		r.enqueue(first, st, &continuation{br, next + 1, conts})
		return
	}

	if dst := br.Destination(); dst != nil {
		r.enqueue(dst, st, conts)
		return
	}

	switch br.Semantics() {
	case cfg.StructuredExceptionHandling:
		if conts == nil {
			r.Logger.Debugw("finally completed without a pending branch", "block", br.Source().String())
			return
		}
		r.follow(conts.branch, conts.next, st, conts.parent)
	case cfg.ThrowBranch, cfg.Rethrow, cfg.ProgramTermination, cfg.Error:
		r.enqueue(r.Graph.Exit(), st, nil)
	}
}

// chain threads states through a hook of every live check in order.
func (r *run) chain(hook string, states []state.ProgramState, do func(check.Check, state.ProgramState) []state.ProgramState) []state.ProgramState {
	for _, c := range r.checks {
		var next []state.ProgramState
		for _, st := range states {
			if !c.alive {
				next = append(next, st)
				continue
			}
			var out []state.ProgramState
			if r.call(c, hook, func() { out = do(c.Check, st) }) {
				next = append(next, out...)
			} else {
				next = append(next, st)
			}
		}
		states = next
	}
	return states
}

// call runs a hook, disabling the check if it fails.
func (r *run) call(c *registered, hook string, do func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			c.alive = false
			r.res.Failed = append(r.res.Failed, c.Name())
			r.Logger.Warnw("check disabled",
				"check", c.Name(),
				"hook", hook,
				"graph", r.Graph.Name(),
				"error", check.AsError(p))
			ok = false
		}
	}()
	do()
	return true
}

func (r *run) complete() {
	for _, c := range r.checks {
		if c.alive {
			r.call(c, "ExecutionCompleted", c.ExecutionCompleted)
		}
	}

	for _, c := range r.checks {
		if !c.alive {
			continue
		}
		if _, partial := c.Check.(check.PartialResults); r.res.Exhausted && !partial {
			continue
		}
		var fs []check.Finding
		if r.call(c, "Findings", func() { fs = c.Findings() }) {
			r.res.Findings = append(r.res.Findings, fs...)
		}
	}
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/analysis/check"
	"github.com/cs-au-dk/symex/analysis/symex"
	"github.com/cs-au-dk/symex/checks"
	"github.com/cs-au-dk/symex/pkgutil"
	"github.com/cs-au-dk/symex/utils"
	"github.com/cs-au-dk/symex/utils/dot"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/ssa"
)

// ErrNoFunction is returned when --fun matches no loaded function.
var ErrNoFunction = errors.New("function not found")

// pipeline is a wrapper around the analysis pipeline.
type pipeline struct {
	prog   *ssa.Program
	funcs  []*ssa.Function
	cache  *cfg.Cache
	logger *zap.SugaredLogger
}

// outcome is the analysis result of a single function.
type outcome struct {
	fun    *ssa.Function
	graph  *cfg.Graph
	result symex.Result
	// err is set when no graph could be built for fun or the engine
	// failed internally.
	err error
}

// load loads the packages and selects the targeted functions.
func load(patterns []string) (*pipeline, error) {
	logger := utils.NewLogger(opts.Verbose())

	roots, err := pkgutil.LoadPackages(pkgutil.LoadConfig{
		GoPath:       opts.GoPath(),
		ModulePath:   opts.ModulePath(),
		IncludeTests: opts.IncludeTests(),
	}, patterns...)
	if err != nil {
		return nil, err
	}

	prog, pkgs := pkgutil.BuildSSA(roots)
	local := pkgutil.LocalPackages(roots, pkgs)

	p := &pipeline{prog: prog, cache: cfg.NewCache(), logger: logger}
	if opts.AnalyzeAllFuncs() {
		p.funcs = pkgutil.Functions(prog, local)
	} else if fun := pkgutil.FunctionByName(prog, local, opts.Function()); fun != nil {
		p.funcs = []*ssa.Function{fun}
	} else {
		return nil, errors.Wrapf(ErrNoFunction, "%q", opts.Function())
	}

	logger.Infow("packages loaded", "packages", len(local), "functions", len(p.funcs))
	return p, nil
}

// graph lowers fun, sharing the result between concurrent requests.
func (p *pipeline) graph(fun *ssa.Function) (*cfg.Graph, error) {
	return p.cache.Get(cfg.Key{Compilation: p.prog, Declaration: fun}, func() (*cfg.Graph, error) {
		return cfg.FromSSA(fun)
	})
}

// analyze explores every targeted function with a fresh set of checks.
// Functions are explored in parallel; each exploration is sequential.
func (p *pipeline) analyze(ctx context.Context) ([]outcome, error) {
	// Reject unknown checks before starting any work.
	if _, err := checks.Instantiate(opts.Checks()); err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(p.funcs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, fun := range p.funcs {
		i, fun := i, fun
		eg.Go(func() error {
			out := &outcomes[i]
			out.fun = fun

			g, err := p.graph(fun)
			if err != nil {
				p.logger.Warnw("no graph", "function", fun.String(), "error", err)
				out.err = err
				return nil
			}
			out.graph = g

			cs, err := checks.Instantiate(opts.Checks())
			if err != nil {
				return err
			}
			out.result, err = p.explore(ctx, g, cs)
			switch {
			case err == nil:
			case out.result.Cancelled:
				return err
			default:
				p.logger.Errorw("exploration failed", "function", fun.String(), "error", err)
				out.err = err
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (p *pipeline) explore(ctx context.Context, g *cfg.Graph, cs []check.Check) (symex.Result, error) {
	return symex.New(g, cs,
		symex.WithMaxSteps(opts.MaxSteps()),
		symex.WithMaxStatesPerBlock(opts.MaxStatesPerBlock()),
		symex.WithLogger(p.logger.With("function", g.Name())),
	).Run(ctx)
}

// printGraphs dumps the graphs of the targeted functions and renders the
// first one when --dot is set.
func (p *pipeline) printGraphs(w io.Writer) error {
	for _, fun := range p.funcs {
		g, err := p.graph(fun)
		if err != nil {
			fmt.Fprintln(w, utils.CanColorize(colorErr)(fun.String()+":"), err)
			continue
		}

		fmt.Fprintln(w, utils.CanColorize(colorFunc)(fun.String()))
		fmt.Fprintln(w, g)

		if opts.DotOutput() != "" {
			var buf bytes.Buffer
			if err := g.ToDot().WriteDot(&buf); err != nil {
				return err
			}
			img, err := dot.DotToImage(opts.DotOutput(), opts.ImageFormat(), buf.Bytes())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "rendered", img)
			return nil
		}
	}
	return nil
}

package main

import (
	"fmt"
	"go/token"
	"io"
	"sort"

	"github.com/cs-au-dk/symex/utils"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

var (
	colorErr  = color.New(color.FgRed, color.Bold).SprintFunc()
	colorFunc = color.New(color.FgCyan, color.Bold).SprintFunc()
	colorRule = color.New(color.FgYellow).SprintFunc()
	colorPos  = color.New(color.Faint).SprintFunc()
)

// report is a finding with resolved positions.
type report struct {
	Rule      string   `yaml:"rule" msgpack:"rule"`
	Message   string   `yaml:"message" msgpack:"message"`
	Function  string   `yaml:"function" msgpack:"function"`
	Position  string   `yaml:"position" msgpack:"position"`
	Secondary []string `yaml:"secondary,omitempty" msgpack:"secondary,omitempty"`
}

func reports(fset *token.FileSet, outcomes []outcome) []report {
	res := []report{}
	for _, out := range outcomes {
		for _, f := range out.result.Findings {
			r := report{
				Rule:     f.Rule,
				Message:  f.Message,
				Function: out.fun.String(),
				Position: fset.Position(f.Pos).String(),
			}
			for _, pos := range f.Secondary {
				r.Secondary = append(r.Secondary, fset.Position(pos).String())
			}
			res = append(res, r)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Position != res[j].Position {
			return res[i].Position < res[j].Position
		}
		return res[i].Rule < res[j].Rule
	})
	return res
}

func (p *pipeline) report(w io.Writer, outcomes []outcome) error {
	return writeReports(w, opts.OutputFormat().String(), reports(p.prog.Fset, outcomes))
}

func writeReports(w io.Writer, format string, rs []report) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rs); err != nil {
			return errors.Wrap(err, "report: yaml")
		}
		return errors.Wrap(enc.Close(), "report: yaml")
	case "msgpack":
		return errors.Wrap(msgpack.NewEncoder(w).Encode(rs), "report: msgpack")
	case "text":
		for _, r := range rs {
			fmt.Fprintf(w, "%s: %s %s\n",
				utils.CanColorize(colorPos)(r.Position),
				utils.CanColorize(colorRule)("["+r.Rule+"]"),
				r.Message)
			for _, pos := range r.Secondary {
				fmt.Fprintf(w, "\talso at %s\n", utils.CanColorize(colorPos)(pos))
			}
		}
		return nil
	}
	return errors.Errorf("unknown format %q", format)
}

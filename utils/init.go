package utils

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

type options struct {
	maxSteps          uint
	maxStatesPerBlock uint
	function          string
	outputFormat      string
	imageFormat       string
	dotOutput         string
	gopath            string
	modulePath        string
	configPath        string
	checks            []string
	noColorize        bool
	verbose           bool
	includeTests      bool
	metrics           bool
}

const (
	_FORMAT_TEXT = iota
	_FORMAT_YAML
	_FORMAT_MSGPACK
)

var formats = []struct{ flag, explanation string }{{
	"text",
	"One finding per line, prefixed by its position",
}, {
	"yaml",
	"A YAML document listing every finding",
}, {
	"msgpack",
	"A MessagePack encoded array of findings",
}}

func CanColorize(col func(...interface{}) string) func(...interface{}) string {
	if opts.noColorize {
		return func(is ...interface{}) string {
			return fmt.Sprintf(strings.Repeat("%s", len(is)), is...)
		}
	}
	return col
}

var opts = defaultOptions()

func defaultOptions() *options {
	return &options{
		maxSteps:          10000,
		maxStatesPerBlock: 64,
		function:          ".",
		outputFormat:      formats[_FORMAT_TEXT].flag,
		imageFormat:       "svg",
	}
}

type optInterface struct{}

type formatInterface struct{}

func Opts() optInterface {
	return optInterface{}
}

func (optInterface) NoColorize() bool {
	return opts.noColorize
}
func (optInterface) MaxSteps() int {
	return int(opts.maxSteps)
}
func (optInterface) MaxStatesPerBlock() int {
	return int(opts.maxStatesPerBlock)
}
func (optInterface) Function() string {
	return opts.function
}
func (optInterface) OutputFormat() formatInterface {
	return formatInterface{}
}
func (optInterface) ImageFormat() string {
	return opts.imageFormat
}
func (optInterface) DotOutput() string {
	return opts.dotOutput
}
func (optInterface) GoPath() string {
	return opts.gopath
}
func (optInterface) ModulePath() string {
	return opts.modulePath
}
func (optInterface) ConfigPath() string {
	return opts.configPath
}
func (optInterface) Checks() []string {
	return opts.checks
}
func (optInterface) Verbose() bool {
	return opts.verbose
}
func (optInterface) IncludeTests() bool {
	return opts.includeTests
}
func (optInterface) Metrics() bool {
	return opts.metrics
}

func (formatInterface) String() string {
	return opts.outputFormat
}

// AnalyzeAllFuncs is true when every function of the loaded packages is targeted.
func (optInterface) AnalyzeAllFuncs() bool {
	return opts.function == "."
}

// BindFlags registers the analysis options on a command's flag set.
func BindFlags(fs *pflag.FlagSet) {
	formatFlag := "\n"
	for _, format := range formats {
		formatFlag += format.flag + " -- " + format.explanation + "\n"
	}

	fs.UintVar(&(opts.maxSteps), "max-steps", opts.maxSteps, "Maximum number of operation visits per procedure.")
	fs.UintVar(&(opts.maxStatesPerBlock), "max-states", opts.maxStatesPerBlock, "Maximum number of distinct states explored per block.")
	fs.StringVar(&(opts.function), "fun", opts.function, "target a specific function.\n"+
		"- Function names need not be fully qualified w.r.t. package name.\n"+
		"- Use '.' to analyze all functions in the loaded packages.\n")
	fs.StringVar(&(opts.outputFormat), "format", opts.outputFormat, "findings output format. Options:"+formatFlag)
	fs.StringVar(&(opts.imageFormat), "image-format", opts.imageFormat, "rendered CFG file format [svg | png | jpg | ...]")
	fs.StringVar(&(opts.dotOutput), "dot", "", "render the CFG of the targeted function to this file (without extension)")
	fs.StringVar(&(opts.gopath), "gopath", "", "specify GOPATH to be used for packages.Load")
	fs.StringVar(&(opts.modulePath), "modulepath", "", `specify a path to a directory containing a Go module.
- If provided this will make our code loading tools (that piggyback on Go's tools) run
in "module-aware" mode (GO111MODULE=on).`)
	fs.StringVar(&(opts.configPath), "config", "", "YAML configuration file")
	fs.StringSliceVar(&(opts.checks), "checks", nil, "enabled rule checks (default: all)")
	fs.BoolVar(&(opts.noColorize), "no-color", false, "Disable pretty printer colorization")
	fs.BoolVar(&(opts.verbose), "verbose", false, "enable verbose output")
	fs.BoolVar(&(opts.includeTests), "include-tests", false, "include test files in the analysis.")
	fs.BoolVar(&(opts.metrics), "metrics", false, "print exploration statistics per procedure")
}

// ValidateArgs checks option values after flags and configuration files have been applied.
func ValidateArgs() error {
	validFormat := false
	for _, format := range formats {
		if format.flag == opts.outputFormat {
			validFormat = true
			break
		}
	}

	if !validFormat {
		return errors.Errorf("value %q is not valid for --format", opts.outputFormat)
	}

	if opts.maxSteps == 0 {
		return errors.New("--max-steps must be positive")
	}
	return nil
}

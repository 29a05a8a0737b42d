package utils

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the YAML representation of the analysis options.
type Config struct {
	MaxSteps          uint     `yaml:"max_steps"`
	MaxStatesPerBlock uint     `yaml:"max_states_per_block"`
	Checks            []string `yaml:"checks,omitempty"`
	Verbose           bool     `yaml:"verbose"`
	Color             bool     `yaml:"color"`
	Format            string   `yaml:"format"`
}

// DefaultConfig returns the configuration matching the default options.
func DefaultConfig() Config {
	def := defaultOptions()
	return Config{
		MaxSteps:          def.maxSteps,
		MaxStatesPerBlock: def.maxStatesPerBlock,
		Color:             true,
		Format:            def.outputFormat,
	}
}

// LoadConfig reads a YAML configuration file. Missing keys keep their default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "config: read")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

// Apply copies the configuration into the options. Flags explicitly set on
// the command line are listed in changed and take precedence.
func (c Config) Apply(changed func(name string) bool) {
	if !changed("max-steps") {
		opts.maxSteps = c.MaxSteps
	}
	if !changed("max-states") {
		opts.maxStatesPerBlock = c.MaxStatesPerBlock
	}
	if !changed("checks") && len(c.Checks) > 0 {
		opts.checks = c.Checks
	}
	if !changed("verbose") {
		opts.verbose = c.Verbose
	}
	if !changed("no-color") {
		opts.noColorize = !c.Color
	}
	if !changed("format") && c.Format != "" {
		opts.outputFormat = c.Format
	}
}

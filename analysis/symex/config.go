package symex

import (
	"github.com/cs-au-dk/symex/analysis/state"
	"go.uber.org/zap"
)

// Strategy determines the order in which pending work is explored.
type Strategy int

const (
	// DepthFirst explores the most recently forked state first.
	DepthFirst Strategy = iota
	// ByOrdinal explores pending work in block order, which visits
	// the blocks of a loop body before its exit.
	ByOrdinal
)

// Config bounds the exploration.
type Config struct {
	// MaxSteps caps the number of operation visits.
	MaxSteps int
	// MaxStatesPerBlock caps the number of distinct states explored at
	// the start of each block.
	MaxStatesPerBlock int
	Logger            *zap.SugaredLogger
	// InitialState is used at the entry block when set.
	InitialState *state.ProgramState
	Strategy     Strategy
}

// DefaultConfig bounds exploration to 10000 steps and 64 states per block.
func DefaultConfig() Config {
	return Config{
		MaxSteps:          10000,
		MaxStatesPerBlock: 64,
		Logger:            zap.NewNop().Sugar(),
	}
}

// Option adjusts the configuration of an engine.
type Option func(*Config)

// WithMaxSteps caps the number of operation visits. Zero lifts the cap.
func WithMaxSteps(n int) Option {
	return func(c *Config) { c.MaxSteps = n }
}

// WithMaxStatesPerBlock caps the distinct states explored per block.
func WithMaxStatesPerBlock(n int) Option {
	return func(c *Config) { c.MaxStatesPerBlock = n }
}

// WithLogger sets the logger. A nil logger keeps the current one.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithInitialState starts exploration from st instead of the empty state.
func WithInitialState(st state.ProgramState) Option {
	return func(c *Config) { c.InitialState = &st }
}

// WithStrategy sets the order in which pending work is explored.
func WithStrategy(s Strategy) Option {
	return func(c *Config) { c.Strategy = s }
}

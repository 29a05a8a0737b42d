package utils

import "go.uber.org/zap"

// NewLogger creates the sugared logger used across the analysis. Verbose
// logging uses the development configuration.
func NewLogger(verbose bool) *zap.SugaredLogger {
	var (
		l   *zap.Logger
		err error
	)
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Package checks collects the rule checks shipped with symex.
package checks

import (
	"sort"

	"github.com/cs-au-dk/symex/analysis/check"
	"github.com/cs-au-dk/symex/checks/lockbalance"
	"github.com/cs-au-dk/symex/checks/nullderef"
	"github.com/cs-au-dk/symex/checks/released"
	"github.com/cs-au-dk/symex/checks/unreachable"
	"github.com/pkg/errors"
)

// ErrUnknownCheck is returned when a requested check is not registered.
var ErrUnknownCheck = errors.New("unknown check")

// Checks carry per-run state, so the registry stores factories.
var registry = map[string]func() check.Check{
	lockbalance.Rule: func() check.Check { return lockbalance.New() },
	nullderef.Rule:   func() check.Check { return nullderef.New() },
	released.Rule:    func() check.Check { return released.New() },
	unreachable.Rule: func() check.Check { return unreachable.New() },
}

// Names lists the registered checks in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate creates fresh instances of the named checks, or of every
// registered check if names is empty.
func Instantiate(names []string) ([]check.Check, error) {
	if len(names) == 0 {
		names = Names()
	}

	res := make([]check.Check, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		factory, ok := registry[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownCheck, "%q (available: %v)", name, Names())
		}
		res = append(res, factory())
	}
	return res, nil
}

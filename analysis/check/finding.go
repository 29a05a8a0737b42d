package check

import (
	"fmt"
	"go/token"
	"sort"

	"github.com/pkg/errors"
)

// Finding is a diagnostic produced by a check.
type Finding struct {
	Rule      string
	Message   string
	Pos       token.Pos
	Secondary []token.Pos
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Rule, f.Message)
}

type Findings []Finding

// Dedup keeps the first finding for every rule and position, and orders
// the result by position.
func (fs Findings) Dedup() Findings {
	type key struct {
		rule string
		pos  token.Pos
	}
	seen := make(map[key]bool)
	res := make(Findings, 0, len(fs))
	for _, f := range fs {
		k := key{f.Rule, f.Pos}
		if seen[k] {
			continue
		}
		seen[k] = true
		res = append(res, f)
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Pos != res[j].Pos {
			return res[i].Pos < res[j].Pos
		}
		return res[i].Rule < res[j].Rule
	})
	return res
}

// ErrCheckFailed is the cause of every hook failure.
var ErrCheckFailed = errors.New("check failed")

// Failure is the panic value raised by Fail.
type Failure struct {
	Err error
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// Fail aborts the current hook. The engine disables the failing check for
// the rest of the run.
func Fail(format string, args ...interface{}) {
	panic(&Failure{errors.Wrapf(ErrCheckFailed, format, args...)})
}

// AsError converts a recovered panic value into an error.
func AsError(p interface{}) error {
	switch p := p.(type) {
	case *Failure:
		return p.Err
	case error:
		return errors.Wrap(ErrCheckFailed, p.Error())
	}
	return errors.Wrapf(ErrCheckFailed, "%v", p)
}

package pkgutil

import (
	"go/types"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// CheckPkgInGoroot checks whether a package is declared in GOROOT.
func CheckPkgInGoroot(pkg *types.Package) bool {
	path := filepath.Join(runtime.GOROOT(), "src", pkg.Path())
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return true
	}
	return false
}

// CheckInGoroot is true iff. the function is in a package declared in GOROOT.
func CheckInGoroot(fun *ssa.Function) bool {
	return fun != nil && fun.Pkg != nil &&
		CheckPkgInGoroot(fun.Pkg.Pkg)
}

// AllPackages aggregates all non-synthetic test packages that
// contain at least one member in a slice.
func AllPackages(prog *ssa.Program) []*ssa.Package {
	mp := make(map[string]*ssa.Package)

	for _, pkg := range prog.AllPackages() {
		if strings.HasSuffix(pkg.String(), ".test") {
			continue
		}

		opkg, ok := mp[pkg.String()]
		if !ok || len(pkg.Members) > len(opkg.Members) {
			mp[pkg.String()] = pkg
		}
	}

	res := make([]*ssa.Package, 0, len(mp))
	for _, pkg := range mp {
		res = append(res, pkg)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Pkg.Path() < res[j].Pkg.Path()
	})
	return res
}

// Functions lists the functions with bodies declared in the given packages,
// sorted by position. Anonymous functions are left out since they are
// reached through their enclosing function.
func Functions(prog *ssa.Program, pkgs []*ssa.Package) (res []*ssa.Function) {
	wanted := make(map[*ssa.Package]bool, len(pkgs))
	for _, pkg := range pkgs {
		wanted[pkg] = true
	}

	for fun := range ssautil.AllFunctions(prog) {
		if fun.Pkg == nil || !wanted[fun.Pkg] || len(fun.Blocks) == 0 ||
			fun.Parent() != nil || fun.Synthetic != "" {
			continue
		}
		res = append(res, fun)
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].Pos() != res[j].Pos() {
			return res[i].Pos() < res[j].Pos()
		}
		return res[i].String() < res[j].String()
	})
	return
}

// FunctionByName finds a function with the given name in the packages.
// Names may be qualified by the package path, or a method qualified by its
// receiver type, e.g. "(*T).M".
func FunctionByName(prog *ssa.Program, pkgs []*ssa.Package, name string) *ssa.Function {
	for _, fun := range Functions(prog, pkgs) {
		if fun.Name() == name || fun.String() == name || fun.RelString(fun.Pkg.Pkg) == name {
			return fun
		}
	}
	return nil
}

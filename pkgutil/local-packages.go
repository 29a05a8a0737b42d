package pkgutil

import (
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
)

func pkgQualifiedPath(path string) []string {
	parts := strings.Split(strings.TrimSuffix(path, ".test"), "/")

	if parts[0] == "vendor" {
		parts = parts[1:]
	}

	return parts
}

// LocalPackages selects the SSA packages sharing a path prefix of up to three
// components with one of the root packages.
func LocalPackages(roots []*packages.Package, pkgs []*ssa.Package) (res []*ssa.Package) {
	var rootPaths [][]string
	for _, root := range roots {
		rootPaths = append(rootPaths, pkgQualifiedPath(root.PkgPath))
	}

	for _, p := range pkgs {
		if p == nil || p.Pkg == nil {
			continue
		}
		pkgpath := pkgQualifiedPath(p.Pkg.Path())

		for _, mainpath := range rootPaths {
			isLocal := true
			for i := 0; isLocal && i < 3 && i < len(mainpath) && i < len(pkgpath); i++ {
				isLocal = isLocal && mainpath[i] == pkgpath[i]
			}
			if isLocal {
				res = append(res, p)
				break
			}
		}
	}

	return
}

package testutil

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/cs-au-dk/symex/analysis/cfg"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// BuildSource type checks a single file package and builds its SSA form.
// Sources without imports take a fast path that does not invoke the go
// command.
func BuildSource(t *testing.T, content string) *ssa.Package {
	t.Helper()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(
		fset,
		"main.go",
		content,
		parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}

	files := []*ast.File{file}

	// First argument is package path, the second is name.
	pkg := types.NewPackage("pkg-loaded-from-src", file.Name.Name)
	spkg, _, err := ssautil.BuildPackage(
		&types.Config{Importer: importer.Default()},
		fset, pkg, files, ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatal(err)
	}

	return spkg
}

// Function retrieves a package level function, or a method given as
// "Type.Method".
func Function(t *testing.T, pkg *ssa.Package, name string) *ssa.Function {
	t.Helper()

	if fun := pkg.Func(name); fun != nil {
		return fun
	}

	for _, mem := range pkg.Members {
		typ, ok := mem.(*ssa.Type)
		if !ok {
			continue
		}

		ptr := types.NewPointer(typ.Type())
		mset := pkg.Prog.MethodSets.MethodSet(ptr)
		for i := 0; i < mset.Len(); i++ {
			sel := mset.At(i)
			if typ.Name()+"."+sel.Obj().Name() == name {
				return pkg.Prog.MethodValue(sel)
			}
		}
	}

	t.Fatalf("Function %s not found", name)
	return nil
}

// GraphOf lowers the named function of a source file to a control-flow graph.
func GraphOf(t *testing.T, content string, name string) *cfg.Graph {
	t.Helper()

	g, err := cfg.FromSSA(Function(t, BuildSource(t, content), name))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// FindBlock returns the first block with an operation whose string
// representation is str.
func FindBlock(t *testing.T, g *cfg.Graph, str string) *cfg.Block {
	t.Helper()

	for _, blk := range g.Blocks() {
		for _, op := range blk.Operations() {
			if op.String() == str {
				return blk
			}
		}
	}

	t.Fatalf("No operation %q in:\n%s", str, g)
	return nil
}

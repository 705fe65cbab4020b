// Package compileloop detects regexp and rule predicate compilation inside loops.
package compileloop

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer detects regexp.Compile and predicate.Compile calls inside loops whose
// arguments do not change between iterations. Compiling each rule of a list is fine;
// compiling the same pattern for every entity is not.
var Analyzer = &analysis.Analyzer{
	Name:     "compileloop",
	Doc:      "detects loop-invariant regexp and predicate compilation inside loops",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// predicatePkgSuffix identifies the rule predicate package by import path.
const predicatePkgSuffix = "internal/domain/predicate"

var compileFuncs = map[string]map[string]bool{
	"regexp": {
		"Compile":          true,
		"MustCompile":      true,
		"CompilePOSIX":     true,
		"MustCompilePOSIX": true,
	},
	"predicate": {
		"Compile":     true,
		"MustCompile": true,
	},
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.RangeStmt)(nil),
		(*ast.ForStmt)(nil),
	}

	inspect.Preorder(nodeFilter, func(loop ast.Node) {
		var body *ast.BlockStmt
		switch stmt := loop.(type) {
		case *ast.RangeStmt:
			body = stmt.Body
		case *ast.ForStmt:
			body = stmt.Body
		}
		if body == nil {
			return
		}

		ast.Inspect(body, func(n ast.Node) bool {
			// Closures run later; the loop only builds them.
			if _, ok := n.(*ast.FuncLit); ok {
				return false
			}

			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}

			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}

			pkg := packageOf(pass, sel.X)
			if pkg == "" || !compileFuncs[pkg][sel.Sel.Name] {
				return true
			}
			if dependsOnLoop(pass, loop, call.Args) {
				return true
			}

			pass.Reportf(call.Pos(),
				"%s.%s called inside loop - compile once outside loop",
				pkg, sel.Sel.Name)
			return true
		})
	})

	return nil, nil
}

// packageOf returns "regexp" or "predicate" when x names one of those packages.
func packageOf(pass *analysis.Pass, x ast.Expr) string {
	ident, ok := x.(*ast.Ident)
	if !ok {
		return ""
	}
	pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
	if !ok {
		return ""
	}

	switch path := pkgName.Imported().Path(); {
	case path == "regexp":
		return "regexp"
	case strings.HasSuffix(path, predicatePkgSuffix):
		return "predicate"
	default:
		return ""
	}
}

// dependsOnLoop reports whether any argument refers to a variable declared inside the loop.
func dependsOnLoop(pass *analysis.Pass, loop ast.Node, args []ast.Expr) bool {
	found := false
	for _, arg := range args {
		ast.Inspect(arg, func(n ast.Node) bool {
			ident, ok := n.(*ast.Ident)
			if !ok || found {
				return !found
			}
			obj, ok := pass.TypesInfo.Uses[ident].(*types.Var)
			if ok && obj.Pos() >= loop.Pos() && obj.Pos() < loop.End() {
				found = true
			}
			return !found
		})
	}
	return found
}

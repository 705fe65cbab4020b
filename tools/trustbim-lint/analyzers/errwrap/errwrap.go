// Package errwrap detects fmt.Errorf calls that format an error without wrapping it.
package errwrap

import (
	"go/ast"
	"go/constant"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports fmt.Errorf calls that take an error argument but have no %w verb.
// Callers match sentinel errors like handlers.ErrNoInputs with errors.Is.
var Analyzer = &analysis.Analyzer{
	Name:     "errwrap",
	Doc:      "detects fmt.Errorf calls that format an error with %v or %s instead of wrapping it with %w",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var errorType = types.Universe.Lookup("error").Type().Underlying().(*types.Interface)

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	inspect.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		if !isErrorf(pass, call) || len(call.Args) < 2 {
			return
		}

		tv, ok := pass.TypesInfo.Types[call.Args[0]]
		if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
			return
		}
		if strings.Contains(constant.StringVal(tv.Value), "%w") {
			return
		}

		for _, arg := range call.Args[1:] {
			t := pass.TypesInfo.TypeOf(arg)
			if t != nil && types.Implements(t, errorType) {
				pass.Reportf(arg.Pos(), "error formatted without %%w - wrap it so callers can use errors.Is")
				return
			}
		}
	})

	return nil, nil
}

func isErrorf(pass *analysis.Pass, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Errorf" {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
	return ok && pkgName.Imported().Path() == "fmt"
}

// Package zapmsg detects zap log messages built with fmt.Sprintf.
package zapmsg

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports zap.Logger calls whose message is formatted with fmt.Sprintf.
// Run logs are parsed as JSON, so values belong in fields and messages stay constant.
var Analyzer = &analysis.Analyzer{
	Name:     "zapmsg",
	Doc:      "detects zap log messages formatted with fmt.Sprintf instead of structured fields",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

const zapPkg = "go.uber.org/zap"

var logMethods = map[string]bool{
	"Debug":  true,
	"Info":   true,
	"Warn":   true,
	"Error":  true,
	"DPanic": true,
	"Panic":  true,
	"Fatal":  true,
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	inspect.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !logMethods[sel.Sel.Name] || len(call.Args) == 0 {
			return
		}
		if !isZapLogger(pass.TypesInfo.TypeOf(sel.X)) {
			return
		}

		msg, ok := call.Args[0].(*ast.CallExpr)
		if !ok || !isFmtCall(pass, msg, "Sprintf") {
			return
		}

		pass.Reportf(msg.Pos(),
			"zap %s message built with fmt.Sprintf - use a constant message and zap fields",
			sel.Sel.Name)
	})

	return nil, nil
}

func isZapLogger(t types.Type) bool {
	if t == nil {
		return false
	}
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	if obj.Pkg() == nil || obj.Pkg().Path() != zapPkg {
		return false
	}
	return obj.Name() == "Logger" || obj.Name() == "SugaredLogger"
}

func isFmtCall(pass *analysis.Pass, call *ast.CallExpr, name string) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != name {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
	return ok && pkgName.Imported().Path() == "fmt"
}

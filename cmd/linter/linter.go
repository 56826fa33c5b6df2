package linter

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
)

// Analyzer запрещает аварийные завершения процесса в коде координатора:
// panic, log.Fatal* и os.Exit допустимы только внутри функции main пакета main.
// Фоновые воркеры инвалидации и сэмплер метрик обязаны возвращать ошибку,
// а не ронять весь процесс.
var Analyzer = &analysis.Analyzer{
	Name: "exitcheck",
	Doc:  "запрещает panic, log.Fatal и os.Exit вне функции main пакета main",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			checkCall(pass, call)
			return true
		})
	}

	return nil, nil
}

func checkCall(pass *analysis.Pass, call *ast.CallExpr) {
	if ident, ok := call.Fun.(*ast.Ident); ok {
		if ident.Name == "panic" {
			pass.Reportf(call.Pos(), "прямой вызов panic запрещён")
		}
		return
	}

	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}
	pkgIdent, ok := sel.X.(*ast.Ident)
	if !ok {
		return
	}

	pkgName := pkgIdent.Name
	funcName := sel.Sel.Name

	if !isProcessExit(pkgName, funcName) {
		return
	}
	if inMainOfMain(pass, call) {
		return
	}

	pass.Reportf(call.Pos(), "%s.%s допустим только в функции main пакета main", pkgName, funcName)
}

// isProcessExit сообщает, завершает ли вызов pkg.fn процесс целиком.
func isProcessExit(pkg, fn string) bool {
	if pkg == "os" {
		return fn == "Exit"
	}
	if pkg == "log" {
		return fn == "Fatal" || fn == "Fatalf" || fn == "Fatalln"
	}
	return false
}

// inMainOfMain сообщает, находится ли вызов внутри функции main пакета main.
func inMainOfMain(pass *analysis.Pass, call *ast.CallExpr) bool {
	if pass.Pkg.Name() != "main" {
		return false
	}

	for _, file := range pass.Files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || fn.Name.Name != "main" {
				continue
			}
			if fn.Pos() <= call.Pos() && call.End() <= fn.End() {
				return true
			}
		}
	}

	return false
}

// Package analyzer statically screens submitted strategy source before it is
// ever loaded into a VM.
package analyzer

import (
	"fmt"
	"strings"

	appErr "arena/pkg/errors"

	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

const dynamicImport = "<dynamic>"

// Verdict is the outcome of one safety check.
type Verdict struct {
	Safe   bool
	Reason string
}

// Err converts an unsafe verdict into a static rejection error.
func (v Verdict) Err() error {
	if v.Safe {
		return nil
	}
	return appErr.Rejected(v.Reason)
}

// Policy describes the capability surface submitted code may touch.
type Policy struct {
	// AllowedImports are module paths accepted by require, including dotted children.
	AllowedImports []string
	// DeniedCalls are bare global functions that escape the sandbox.
	DeniedCalls []string
	// RestrictedGlobals are standard library tables whose use counts as an import.
	RestrictedGlobals []string
	// MaxSourceBytes rejects oversized sources before parsing. Zero disables the check.
	MaxSourceBytes int
}

// DefaultPolicy returns the policy used by both execution deployments.
func DefaultPolicy() Policy {
	return Policy{
		AllowedImports: []string{"arena.random", "arena.player"},
		DeniedCalls: []string{
			"load", "loadstring", "loadfile", "dofile",
			"setfenv", "getfenv", "collectgarbage", "module",
			"newproxy", "rawset", "rawget",
		},
		RestrictedGlobals: []string{"os", "io", "debug", "package"},
		MaxSourceBytes:    64 << 10,
	}
}

// Analyzer checks sources against a fixed policy. It is safe for concurrent use.
type Analyzer struct {
	allowed    []string
	denied     map[string]struct{}
	restricted map[string]struct{}
	maxBytes   int
}

// New creates an analyzer for the given policy.
func New(policy Policy) *Analyzer {
	a := &Analyzer{
		allowed:    append([]string(nil), policy.AllowedImports...),
		denied:     make(map[string]struct{}, len(policy.DeniedCalls)),
		restricted: make(map[string]struct{}, len(policy.RestrictedGlobals)),
		maxBytes:   policy.MaxSourceBytes,
	}
	for _, name := range policy.DeniedCalls {
		a.denied[name] = struct{}{}
	}
	for _, name := range policy.RestrictedGlobals {
		a.restricted[name] = struct{}{}
	}
	return a
}

// Check parses source and reports the first policy violation found.
// The source is never executed.
func (a *Analyzer) Check(source string) Verdict {
	if a.maxBytes > 0 && len(source) > a.maxBytes {
		return Verdict{Reason: fmt.Sprintf("code too large: %d bytes (max %d)", len(source), a.maxBytes)}
	}
	chunk, err := parse.Parse(strings.NewReader(source), "<submission>")
	if err != nil {
		return Verdict{Reason: "syntax error: " + err.Error()}
	}
	w := &walker{analyzer: a}
	w.push()
	w.block(chunk)
	if w.reason != "" {
		return Verdict{Reason: w.reason}
	}
	return Verdict{Safe: true}
}

// ImportAllowed reports whether a module path matches the allow-list.
func (a *Analyzer) ImportAllowed(name string) bool {
	for _, prefix := range a.allowed {
		if name == prefix || strings.HasPrefix(name, prefix+".") {
			return true
		}
	}
	return false
}

// walker tracks lexical scopes so that locals shadowing a global are not flagged.
type walker struct {
	analyzer *Analyzer
	scopes   []map[string]struct{}
	reason   string
}

func (w *walker) push() { w.scopes = append(w.scopes, map[string]struct{}{}) }
func (w *walker) pop()  { w.scopes = w.scopes[:len(w.scopes)-1] }

func (w *walker) declare(names ...string) {
	top := w.scopes[len(w.scopes)-1]
	for _, name := range names {
		top[name] = struct{}{}
	}
}

func (w *walker) isLocal(name string) bool {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if _, ok := w.scopes[i][name]; ok {
			return true
		}
	}
	return false
}

func (w *walker) fail(format string, args ...any) {
	if w.reason == "" {
		w.reason = fmt.Sprintf(format, args...)
	}
}

func (w *walker) done() bool { return w.reason != "" }

func (w *walker) scoped(stmts []ast.Stmt, names ...string) {
	w.push()
	w.declare(names...)
	w.block(stmts)
	w.pop()
}

func (w *walker) block(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		if w.done() {
			return
		}
		w.stmt(stmt)
	}
}

func (w *walker) stmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		w.exprs(s.Lhs)
		w.exprs(s.Rhs)
	case *ast.LocalAssignStmt:
		// local function f() ... end must see f inside its own body.
		if len(s.Exprs) == 1 && len(s.Names) == 1 {
			if _, ok := s.Exprs[0].(*ast.FunctionExpr); ok {
				w.declare(s.Names...)
			}
		}
		w.exprs(s.Exprs)
		w.declare(s.Names...)
	case *ast.FuncCallStmt:
		w.expr(s.Expr)
	case *ast.DoBlockStmt:
		w.scoped(s.Stmts)
	case *ast.WhileStmt:
		w.expr(s.Condition)
		w.scoped(s.Stmts)
	case *ast.RepeatStmt:
		w.push()
		w.block(s.Stmts)
		w.expr(s.Condition)
		w.pop()
	case *ast.IfStmt:
		w.expr(s.Condition)
		w.scoped(s.Then)
		w.scoped(s.Else)
	case *ast.NumberForStmt:
		w.expr(s.Init)
		w.expr(s.Limit)
		w.expr(s.Step)
		w.scoped(s.Stmts, s.Name)
	case *ast.GenericForStmt:
		w.exprs(s.Exprs)
		w.scoped(s.Stmts, s.Names...)
	case *ast.FuncDefStmt:
		if s.Name != nil {
			w.expr(s.Name.Func)
			w.expr(s.Name.Receiver)
		}
		w.function(s.Func, s.Name != nil && s.Name.Method != "")
	case *ast.ReturnStmt:
		w.exprs(s.Exprs)
	}
}

func (w *walker) exprs(exprs []ast.Expr) {
	for _, e := range exprs {
		if w.done() {
			return
		}
		w.expr(e)
	}
}

func (w *walker) function(fn *ast.FunctionExpr, method bool) {
	if fn == nil {
		return
	}
	var params []string
	if fn.ParList != nil {
		params = append(params, fn.ParList.Names...)
	}
	if method {
		params = append(params, "self")
	}
	w.scoped(fn.Stmts, params...)
}

func (w *walker) expr(expr ast.Expr) {
	if expr == nil || w.done() {
		return
	}
	switch e := expr.(type) {
	case *ast.IdentExpr:
		w.ident(e.Value)
	case *ast.FuncCallExpr:
		w.call(e)
	case *ast.AttrGetExpr:
		w.expr(e.Object)
		w.expr(e.Key)
	case *ast.TableExpr:
		for _, field := range e.Fields {
			w.expr(field.Key)
			w.expr(field.Value)
		}
	case *ast.LogicalOpExpr:
		w.expr(e.Lhs)
		w.expr(e.Rhs)
	case *ast.RelationalOpExpr:
		w.expr(e.Lhs)
		w.expr(e.Rhs)
	case *ast.StringConcatOpExpr:
		w.expr(e.Lhs)
		w.expr(e.Rhs)
	case *ast.ArithmeticOpExpr:
		w.expr(e.Lhs)
		w.expr(e.Rhs)
	case *ast.UnaryMinusOpExpr:
		w.expr(e.Expr)
	case *ast.UnaryNotOpExpr:
		w.expr(e.Expr)
	case *ast.UnaryLenOpExpr:
		w.expr(e.Expr)
	case *ast.FunctionExpr:
		w.function(e, false)
	}
}

// ident handles a free identifier outside call position.
func (w *walker) ident(name string) {
	if w.isLocal(name) {
		return
	}
	if _, ok := w.analyzer.restricted[name]; ok {
		w.fail("unauthorized import: %s", name)
		return
	}
	if name == "require" {
		w.fail("unauthorized import: %s", dynamicImport)
		return
	}
	if _, ok := w.analyzer.denied[name]; ok {
		w.fail("unauthorized function call: %s", name)
	}
}

func (w *walker) call(e *ast.FuncCallExpr) {
	if ident, ok := e.Func.(*ast.IdentExpr); ok && !w.isLocal(ident.Value) {
		switch {
		case ident.Value == "require":
			w.require(e.Args)
			if w.done() {
				return
			}
			w.exprs(e.Args)
			return
		default:
			if _, denied := w.analyzer.denied[ident.Value]; denied {
				w.fail("unauthorized function call: %s", ident.Value)
				return
			}
		}
	}
	w.expr(e.Func)
	w.expr(e.Receiver)
	w.exprs(e.Args)
}

func (w *walker) require(args []ast.Expr) {
	if len(args) == 0 {
		w.fail("unauthorized import: %s", dynamicImport)
		return
	}
	lit, ok := args[0].(*ast.StringExpr)
	if !ok {
		w.fail("unauthorized import: %s", dynamicImport)
		return
	}
	if !w.analyzer.ImportAllowed(lit.Value) {
		w.fail("unauthorized import: %s", lit.Value)
	}
}

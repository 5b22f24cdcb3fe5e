// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"slices"
)

// acquireSource returns the source of the statement that holds the lock
// named name for the rest of the enclosing function.
//
// The receiver expression name.Acquire() is evaluated when the defer
// statement runs, so the lock is taken before anything else in the body.
// Release runs on every exit path, panics included.
func acquireSource(name string) string {
	return "defer " + name + ".Acquire().Release()"
}

// AcquireStmt synthesizes the statement that acquires ref on function entry:
//
//	defer <name>.Acquire().Release()
//
// The statement is parsed from generated text; failure to parse it is an
// Internal error. Its positions do not belong to any caller's FileSet.
func AcquireStmt(ref LockRef) (ast.Stmt, error) {
	src := acquireSource(ref.Name)
	f, err := parser.ParseFile(token.NewFileSet(), "", "package p\nfunc _() {\n"+src+"\n}\n", parser.SkipObjectResolution)
	if err != nil {
		e := newError(nil, token.NoPos, Internal, "synthesized statement %q does not parse", src)
		e.Err = err
		return nil, e
	}
	if len(f.Decls) != 1 {
		return nil, newError(nil, token.NoPos, Internal, "synthesized statement %q produced %d declarations", src, len(f.Decls))
	}
	fn, ok := f.Decls[0].(*ast.FuncDecl)
	if !ok || fn.Body == nil || len(fn.Body.List) != 1 {
		return nil, newError(nil, token.NoPos, Internal, "synthesized statement %q is not a single statement", src)
	}
	stmt, ok := fn.Body.List[0].(*ast.DeferStmt)
	if !ok {
		return nil, newError(nil, token.NoPos, Internal, "synthesized statement %q parsed as %T", src, fn.Body.List[0])
	}
	return stmt, nil
}

// Prepend inserts stmt as the first statement of fn's body. The signature
// and all existing statements are left as they are.
func Prepend(fn *ast.FuncDecl, stmt ast.Stmt) {
	if fn.Body == nil {
		panic(fmt.Sprintf("rewrite: Prepend on bodyless function %s", fn.Name.Name))
	}
	fn.Body.List = slices.Insert(fn.Body.List, 0, stmt)
}

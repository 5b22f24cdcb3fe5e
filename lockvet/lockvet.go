// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package lockvet defines an analyzer that checks //lockgen:exclusive
// directives before the rewriter runs.
//
// The rewriter treats lock names as opaque text, so a typo or a parameter
// that shadows the lock only shows up as a compile error in rewritten code.
// lockvet reports those problems against the original source.
package lockvet

import (
	"errors"
	"fmt"
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"

	"github.com/tailscale/lockgen/rewrite"
)

const doc = `check //lockgen:exclusive directives

The lockvet analyzer reports directives that lockgen would reject, and
directives lockgen would accept but whose rewritten function would not
compile or would deadlock:

  - the lock is not a package-level variable;
  - the lock's type has no Acquire method returning a value with a Release
    method;
  - a receiver, parameter or result of the function has the same name as
    the lock;
  - the same lock is named twice on one function.`

// Analyzer reports misuse of lockgen directives.
var Analyzer = &analysis.Analyzer{
	Name: "lockvet",
	Doc:  doc,
	Run:  run,
}

var directive string

func init() {
	Analyzer.Flags.StringVar(&directive, "directive", rewrite.DefaultDirective, "directive name, without the leading //")
}

func run(pass *analysis.Pass) (any, error) {
	for _, f := range pass.Files {
		sites, err := rewrite.Find(pass.Fset, f, directive)
		for _, err := range flatten(err) {
			reportRewriteError(pass, f, err)
		}
		seen := make(map[*ast.FuncDecl]map[string]bool)
		for _, site := range sites {
			names := seen[site.Func]
			if names == nil {
				names = make(map[string]bool)
				seen[site.Func] = names
			}
			if names[site.Lock.Name] {
				pass.Reportf(site.ArgsPos(directive), "lock %s is acquired twice by %s; the second acquisition deadlocks", site.Lock.Name, site.Func.Name.Name)
				continue
			}
			names[site.Lock.Name] = true
			checkShadowing(pass, site)
			checkLock(pass, site)
		}
	}
	return nil, nil
}

func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var errs []error
		for _, e := range j.Unwrap() {
			errs = append(errs, flatten(e)...)
		}
		return errs
	}
	return []error{err}
}

func reportRewriteError(pass *analysis.Pass, f *ast.File, err error) {
	var e *rewrite.Error
	if !errors.As(err, &e) {
		pass.Reportf(f.Package, "%v", err)
		return
	}
	pos := e.Pos
	if !pos.IsValid() {
		pos = f.Package
	}
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	pass.Reportf(pos, "%v: %s", e.Kind, msg)
}

// checkShadowing reports names declared by the function's signature that
// hide the lock from the inserted statement.
func checkShadowing(pass *analysis.Pass, site rewrite.Site) {
	fn := site.Func
	check := func(kind string, fields *ast.FieldList) {
		if fields == nil {
			return
		}
		for _, field := range fields.List {
			for _, name := range field.Names {
				if name.Name == site.Lock.Name {
					pass.Reportf(name.Pos(), "%s %s shadows lock %s named in the directive", kind, name.Name, site.Lock.Name)
				}
			}
		}
	}
	check("receiver", fn.Recv)
	check("type parameter", fn.Type.TypeParams)
	check("parameter", fn.Type.Params)
	check("result", fn.Type.Results)
}

// checkLock reports locks that do not resolve to a package-level variable
// with the Acquire and Release methods the inserted statement calls.
func checkLock(pass *analysis.Pass, site rewrite.Site) {
	name := site.Lock.Name
	pos := site.ArgsPos(directive)
	obj := pass.Pkg.Scope().Lookup(name)
	if obj == nil {
		pass.Reportf(pos, "lock %s is not declared at package level", name)
		return
	}
	v, ok := obj.(*types.Var)
	if !ok {
		pass.Reportf(pos, "lock %s is a %s, not a variable", name, objKind(obj))
		return
	}
	qual := types.RelativeTo(pass.Pkg)

	acquire, ok := method(v.Type(), true, pass.Pkg, "Acquire")
	if !ok {
		pass.Reportf(pos, "lock %s of type %s has no Acquire method", name, types.TypeString(v.Type(), qual))
		return
	}
	if acquire.Params().Len() != 0 || acquire.Results().Len() != 1 {
		pass.Reportf(pos, "lock %s: Acquire must take no arguments and return one value, has type %s", name, types.TypeString(acquire, qual))
		return
	}
	guard := acquire.Results().At(0).Type()
	release, ok := method(guard, false, pass.Pkg, "Release")
	if !ok {
		pass.Reportf(pos, "lock %s: %s returned by Acquire has no Release method", name, types.TypeString(guard, qual))
		return
	}
	if release.Params().Len() != 0 {
		pass.Reportf(pos, "lock %s: Release must take no arguments, has type %s", name, types.TypeString(release, qual))
	}
}

// method returns the signature of the method called name in the method set
// of a value of type t.
func method(t types.Type, addressable bool, pkg *types.Package, name string) (*types.Signature, bool) {
	obj, _, _ := types.LookupFieldOrMethod(t, addressable, pkg, name)
	fn, ok := obj.(*types.Func)
	if !ok {
		return nil, false
	}
	return fn.Type().(*types.Signature), true
}

func objKind(obj types.Object) string {
	switch obj.(type) {
	case *types.Const:
		return "constant"
	case *types.Func:
		return "function"
	case *types.TypeName:
		return "type"
	default:
		return fmt.Sprintf("%T", obj)
	}
}

// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
)

// declPrefix turns a lone declaration into a file without moving it off
// line 1.
const declPrefix = "package p;"

// ParseDecl parses item, the source text of a single top-level declaration,
// and returns it if it is a function declaration with a body. Positions are
// recorded in fset; item starts at offset len(declPrefix) of its file.
func ParseDecl(fset *token.FileSet, item string) (*ast.FuncDecl, error) {
	f, err := parser.ParseFile(fset, "", declPrefix+item, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		e := newError(nil, token.NoPos, NotAFunction, "cannot parse annotated item")
		e.Err = err
		return nil, e
	}
	if len(f.Decls) != 1 {
		return nil, newError(fset, f.Package, NotAFunction, "want a single function declaration, got %d declarations", len(f.Decls))
	}
	return funcOf(fset, f.Decls[0])
}

// funcOf returns decl as a function declaration with a body.
func funcOf(fset *token.FileSet, decl ast.Decl) (*ast.FuncDecl, error) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Body == nil {
			return nil, newError(fset, d.Name.Pos(), NotAFunction, "function %s has no body", d.Name.Name)
		}
		return d, nil
	case *ast.GenDecl:
		return nil, newError(fset, d.Pos(), NotAFunction, "cannot annotate %s declaration; want a function", d.Tok)
	default:
		return nil, newError(fset, decl.Pos(), NotAFunction, "cannot annotate %T; want a function", decl)
	}
}

// Site is a directive found in a file and the function it annotates.
type Site struct {
	Comment *ast.Comment
	Lock    LockRef
	Func    *ast.FuncDecl
}

// ArgsPos returns the position of the lock name in the directive.
func (s Site) ArgsPos(directive string) token.Pos {
	if directive == "" {
		directive = DefaultDirective
	}
	return argsPos(s.Comment, directive) + token.Pos(s.Lock.Offset)
}

// Find returns the directives in f, in source order. f must have been parsed
// with parser.ParseComments.
//
// Every directive must sit in the doc comment of a top-level function
// declaration that has a body and carry exactly one lock name. All
// violations are returned, joined; sites holds only the valid directives.
func Find(fset *token.FileSet, f *ast.File, directive string) (sites []Site, err error) {
	if directive == "" {
		directive = DefaultDirective
	}
	owners := docOwners(f)
	var errs []error
	for _, cg := range f.Comments {
		for _, c := range cg.List {
			args, ok := directiveArgs(c, directive)
			if !ok {
				continue
			}
			ref, argErr := parseArgs(fset, argsPos(c, directive), args)
			if argErr != nil {
				errs = append(errs, argErr)
			}
			var fn *ast.FuncDecl
			var declErr error
			if owner, ok := owners[cg]; ok {
				fn, declErr = funcOf(fset, owner)
			} else {
				declErr = newError(fset, c.Slash, NotAFunction, "directive is not in the doc comment of a function declaration")
			}
			if declErr != nil {
				if e, ok := declErr.(*Error); ok {
					// Point at the directive rather than the declaration.
					e.Pos = c.Slash
					e.Position = fset.Position(c.Slash)
				}
				errs = append(errs, declErr)
			}
			if argErr != nil || declErr != nil {
				continue
			}
			sites = append(sites, Site{Comment: c, Lock: ref, Func: fn})
		}
	}
	return sites, errors.Join(errs...)
}

// docOwners maps each doc comment group in f to the top-level declaration
// it documents. Doc comments of specs inside a grouped declaration map to
// the enclosing declaration.
func docOwners(f *ast.File) map[*ast.CommentGroup]ast.Decl {
	m := make(map[*ast.CommentGroup]ast.Decl)
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Doc != nil {
				m[d.Doc] = d
			}
		case *ast.GenDecl:
			if d.Doc != nil {
				m[d.Doc] = d
			}
			for _, spec := range d.Specs {
				var doc *ast.CommentGroup
				switch s := spec.(type) {
				case *ast.TypeSpec:
					doc = s.Doc
				case *ast.ValueSpec:
					doc = s.Doc
				case *ast.ImportSpec:
					doc = s.Doc
				}
				if doc != nil {
					m[doc] = d
				}
			}
		}
	}
	return m
}

// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package rewrite turns functions annotated with a //lockgen:exclusive
// directive into functions that hold the named lock for their whole body.
//
// Given
//
//	//lockgen:exclusive dbLock
//	func TestInsert(t *testing.T) {
//		insert(t)
//	}
//
// the rewritten function is
//
//	func TestInsert(t *testing.T) {
//		defer dbLock.Acquire().Release()
//		insert(t)
//	}
//
// Functions naming the same lock therefore never run concurrently. The lock
// itself, typically an [github.com/tailscale/lockgen/exclusive.Mutex]
// declared at package level, belongs to the program being rewritten; this
// package only refers to it by name.
//
// The transformation is purely syntactic: it reads one identifier from the
// directive, requires the annotated declaration to be a function with a
// body, prepends one statement per directive and re-emits the source with
// every other byte unchanged. Inputs it cannot handle are rejected whole
// with an [*Error]; no partial output is produced.
package rewrite

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"github.com/tailscale/lockgen/util/codegen"
)

// Expand rewrites item, the source text of a single function declaration,
// as if it were annotated with a directive whose arguments are args.
//
// The result is item with one acquisition statement inserted at the top of
// the body. Expand does not look for directives inside item, so expanding
// already expanded output adds a second statement.
func Expand(args, item string) (string, error) {
	ref, err := ParseArgs(args)
	if err != nil {
		return "", err
	}
	fset := token.NewFileSet()
	fn, err := ParseDecl(fset, item)
	if err != nil {
		return "", err
	}
	stmt, err := AcquireStmt(ref)
	if err != nil {
		return "", err
	}
	Prepend(fn, stmt)

	src := []byte(item)
	ins, err := insertEdit(src, len(declPrefix), fset, fn, 1, Block)
	if err != nil {
		return "", err
	}
	out := applyEdits(src, []edit{ins})
	if _, err := ParseDecl(token.NewFileSet(), string(out)); err != nil {
		e := newError(nil, token.NoPos, Internal, "expanded declaration does not parse")
		e.Err = err
		return "", e
	}
	return string(out), nil
}

// Options configures Source.
type Options struct {
	// Directive is the directive name, without the leading "//".
	// If empty, DefaultDirective is used.
	Directive string

	// Style selects the layout of the inserted statements.
	Style Style

	// KeepDirective leaves the directive comments in the output. By
	// default they are removed in Block style, since the inserted
	// statement now carries the same information, and kept in Inline
	// style, where removing them would shift line numbers.
	KeepDirective bool
}

func (o *Options) directive() string {
	if o == nil || o.Directive == "" {
		return DefaultDirective
	}
	return o.Directive
}

func (o *Options) style() Style {
	if o == nil {
		return Block
	}
	return o.Style
}

func (o *Options) keepDirective() bool {
	if o == nil {
		return false
	}
	return o.KeepDirective || o.Style == Inline
}

// HasDirective reports whether src may contain a directive. It is a cheap
// byte search that lets callers skip parsing files with nothing to rewrite.
func HasDirective(src []byte, directive string) bool {
	if directive == "" {
		directive = DefaultDirective
	}
	return bytes.Contains(src, []byte("//"+directive))
}

// Source rewrites every annotated function in the Go source file src and
// reports how many functions it changed. If there is nothing to rewrite,
// Source returns src itself and 0.
//
// A file with any malformed directive is rejected as a whole: the returned
// error joins one [*Error] per problem and out is nil. A file that mentions
// the directive but does not parse is rejected with a single NotAFunction
// error wrapping the parser's errors, as Expand does for an item that does
// not parse.
func Source(filename string, src []byte, opts *Options) (out []byte, n int, err error) {
	directive := opts.directive()
	if !HasDirective(src, directive) {
		return src, 0, nil
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		e := newError(nil, token.NoPos, NotAFunction, "cannot parse annotated file")
		if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
			e.Position = list[0].Pos
		}
		e.Err = err
		return nil, 0, e
	}
	sites, err := Find(fset, f, directive)
	if err != nil {
		return nil, 0, err
	}
	if len(sites) == 0 {
		return src, 0, nil
	}

	var (
		funcs []*ast.FuncDecl
		added = make(map[*ast.FuncDecl]int)
		edits []edit
	)
	for _, site := range sites {
		stmt, err := AcquireStmt(site.Lock)
		if err != nil {
			return nil, 0, err
		}
		if added[site.Func] == 0 {
			funcs = append(funcs, site.Func)
		}
		Prepend(site.Func, stmt)
		added[site.Func]++
		if !opts.keepDirective() {
			edits = append(edits, removeEdit(src, 0, fset, site.Comment))
		}
	}
	if !opts.keepDirective() {
		edits = append(edits, blankDocEdits(src, fset, funcs, sites)...)
	}
	for _, fn := range funcs {
		ins, err := insertEdit(src, 0, fset, fn, added[fn], opts.style())
		if err != nil {
			return nil, 0, err
		}
		edits = append(edits, ins)
	}
	out = applyEdits(src, edits)

	if opts.style() == Block {
		formatted, err := codegen.GofmtIfClean(src, out)
		if err != nil {
			e := newError(nil, token.NoPos, Internal, "%s: cannot format rewritten source", filename)
			e.Err = err
			return nil, 0, e
		}
		out = formatted
	}
	if _, err := parser.ParseFile(token.NewFileSet(), filename, out, parser.SkipObjectResolution); err != nil {
		e := newError(nil, token.NoPos, Internal, "%s: rewritten source does not parse", filename)
		e.Err = err
		return nil, 0, e
	}
	return out, len(funcs), nil
}

// blankDocEdits removes the empty "//" lines that gofmt puts between a doc
// comment and its trailing directives, which would otherwise be left
// dangling at the end of the doc comment once the directives are gone.
func blankDocEdits(src []byte, fset *token.FileSet, funcs []*ast.FuncDecl, sites []Site) []edit {
	removed := make(map[*ast.Comment]bool)
	for _, site := range sites {
		removed[site.Comment] = true
	}
	var edits []edit
	for _, fn := range funcs {
		list := fn.Doc.List
		sawRemoved := false
		for i := len(list) - 1; i >= 0; i-- {
			c := list[i]
			if removed[c] {
				sawRemoved = true
				continue
			}
			if !sawRemoved || strings.TrimSpace(c.Text) != "//" {
				break
			}
			edits = append(edits, removeEdit(src, 0, fset, c))
		}
	}
	return edits
}

// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"fmt"
	"go/ast"
	"go/scanner"
	"go/token"
	"strings"
)

// DefaultDirective is the comment directive that marks a function as
// mutually exclusive with every other function naming the same lock:
//
//	//lockgen:exclusive dbLock
//	func TestInsert(t *testing.T) { ... }
const DefaultDirective = "lockgen:exclusive"

// LockRef names the lock an annotated function acquires.
//
// The name is opaque: it is copied into the generated statement and only
// resolved when the rewritten package is compiled.
type LockRef struct {
	Name   string
	Offset int // byte offset of Name within the directive arguments
}

// ParseArgs parses the arguments of a directive, the text following the
// directive name. It must consist of exactly one identifier; trailing
// comments are ignored.
func ParseArgs(args string) (LockRef, error) {
	return parseArgs(nil, token.NoPos, args)
}

// parseArgs is ParseArgs with errors positioned relative to base, the
// position of args[0] in fset.
func parseArgs(fset *token.FileSet, base token.Pos, args string) (LockRef, error) {
	at := func(off int) token.Pos {
		if !base.IsValid() {
			return token.NoPos
		}
		return base + token.Pos(off)
	}

	type lexeme struct {
		off int
		tok token.Token
		lit string
	}
	var (
		lexemes []lexeme
		errs    scanner.ErrorList
		s       scanner.Scanner
	)
	file := token.NewFileSet().AddFile("", -1, len(args))
	s.Init(file, []byte(args), func(pos token.Position, msg string) { errs.Add(pos, msg) }, 0)
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			// Automatically inserted at end of line; not part of the input.
			continue
		}
		if lit == "" {
			lit = tok.String()
		}
		lexemes = append(lexemes, lexeme{file.Offset(pos), tok, lit})
	}

	text := strings.TrimSpace(args)
	if len(errs) > 0 {
		e := newError(fset, at(errs[0].Pos.Offset), MalformedArgs, "cannot scan %q", text)
		e.Err = errs.Err()
		return LockRef{}, e
	}
	switch {
	case len(lexemes) == 0:
		return LockRef{}, newError(fset, base, MalformedArgs, "missing lock name")
	case len(lexemes) > 1:
		return LockRef{}, newError(fset, at(lexemes[1].off), MalformedArgs, "want a single lock name, got %q", text)
	}
	lx := lexemes[0]
	switch {
	case lx.tok != token.IDENT:
		return LockRef{}, newError(fset, at(lx.off), MalformedArgs, "want a lock name, got %s", describeToken(lx.tok, lx.lit))
	case lx.lit == "_":
		return LockRef{}, newError(fset, at(lx.off), MalformedArgs, "cannot use _ as lock name")
	}
	return LockRef{Name: lx.lit, Offset: lx.off}, nil
}

func describeToken(tok token.Token, lit string) string {
	switch {
	case tok.IsLiteral():
		return fmt.Sprintf("literal %s", lit)
	case tok.IsKeyword():
		return fmt.Sprintf("keyword %s", lit)
	default:
		return fmt.Sprintf("%q", lit)
	}
}

// directiveArgs reports whether c carries directive and, if so, returns the
// text following the directive name.
func directiveArgs(c *ast.Comment, directive string) (args string, ok bool) {
	rest, ok := strings.CutPrefix(c.Text, "//"+directive)
	if !ok {
		return "", false
	}
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		// A longer directive such as //lockgen:exclusively.
		return "", false
	}
	return rest, true
}

// argsPos returns the position of the first byte of c's directive arguments.
func argsPos(c *ast.Comment, directive string) token.Pos {
	return c.Slash + token.Pos(len("//")+len(directive))
}

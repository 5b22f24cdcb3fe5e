// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"fmt"
	"go/token"
)

// Kind classifies a rewrite failure.
//
// Kind implements error so that callers can test for a class of failure
// with errors.Is, even through errors.Join and fmt.Errorf wrapping:
//
//	if errors.Is(err, rewrite.NotAFunction) { ... }
type Kind int

const (
	_ Kind = iota

	// MalformedArgs means the directive arguments are not exactly one
	// identifier.
	MalformedArgs

	// NotAFunction means the directive is not attached to a function
	// declaration with a body.
	NotAFunction

	// Internal means lockgen produced code it could not parse back.
	// It is a bug in lockgen, never in the input.
	Internal
)

func (k Kind) String() string {
	switch k {
	case MalformedArgs:
		return "malformed annotation arguments"
	case NotAFunction:
		return "not a function"
	case Internal:
		return "internal invariant violation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) Error() string { return k.String() }

// Error is a rewrite failure pinned to a source location.
type Error struct {
	Pos      token.Pos      // position in the FileSet used for parsing; may be NoPos
	Position token.Position // resolved form of Pos
	Kind     Kind
	Msg      string
	Err      error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Position.IsValid() {
		return fmt.Sprintf("%v: lockgen: %v: %s", e.Position, e.Kind, msg)
	}
	return fmt.Sprintf("lockgen: %v: %s", e.Kind, msg)
}

// Is reports whether target is e's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

func newError(fset *token.FileSet, pos token.Pos, kind Kind, format string, args ...any) *Error {
	e := &Error{
		Pos:  pos,
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
	}
	if fset != nil && pos.IsValid() {
		e.Position = fset.Position(pos)
	}
	return e
}

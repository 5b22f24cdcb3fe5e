// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"slices"
	"strings"
)

// Style selects how acquisition statements are laid out in the output.
type Style int

const (
	// Block puts each acquisition statement on its own line at the top of
	// the body. It is meant for output that people read and commit.
	Block Style = iota

	// Inline puts the acquisition statements on the line of the body's
	// opening brace, so every original line keeps its line number. It is
	// meant for build overlays, where panics and test failures must point
	// at the original source.
	Inline
)

func (s Style) String() string {
	switch s {
	case Block:
		return "block"
	case Inline:
		return "inline"
	}
	return "Style(?)"
}

// edit replaces src[off:end] with text.
type edit struct {
	off, end int
	text     string
}

func applyEdits(src []byte, edits []edit) []byte {
	slices.SortFunc(edits, func(a, b edit) int { return b.off - a.off })
	out := bytes.Clone(src)
	for _, e := range edits {
		out = slices.Concat(out[:e.off], []byte(e.text), out[e.end:])
	}
	return out
}

// offset returns the byte offset of pos in src, which starts at file offset
// base.
func offset(fset *token.FileSet, pos token.Pos, base int) int {
	return fset.Position(pos).Offset - base
}

// insertEdit returns the edit that writes the first n statements of fn's
// body into src right after the opening brace. The statements must have
// been added with Prepend; the rest of the body is already in src.
func insertEdit(src []byte, base int, fset *token.FileSet, fn *ast.FuncDecl, n int, style Style) (edit, error) {
	brace := offset(fset, fn.Body.Lbrace, base) + 1
	if brace <= 0 || brace > len(src) || src[brace-1] != '{' {
		return edit{}, newError(fset, fn.Body.Lbrace, Internal, "body of %s does not start at its recorded position", fn.Name.Name)
	}

	stmts := make([]string, 0, n)
	for _, stmt := range fn.Body.List[:n] {
		var buf bytes.Buffer
		// The statements were synthesized from their own FileSet; printing
		// them against an empty one keeps them on a single line.
		if err := printer.Fprint(&buf, token.NewFileSet(), stmt); err != nil {
			e := newError(fset, fn.Body.Lbrace, Internal, "cannot print acquisition statement")
			e.Err = err
			return edit{}, e
		}
		stmts = append(stmts, buf.String())
	}

	var text strings.Builder
	switch style {
	case Inline:
		for _, s := range stmts {
			text.WriteString(" ")
			text.WriteString(s)
			text.WriteString(";")
		}
	default:
		line := restOfLine(src, brace)
		eol := "\n"
		if strings.HasSuffix(line, "\r") {
			eol = "\r\n"
		}
		outer := lineIndent(src, offset(fset, fn.Pos(), base))
		inner := outer + "\t"
		for _, s := range stmts {
			text.WriteString(eol)
			text.WriteString(inner)
			text.WriteString(s)
		}
		rest := strings.TrimSpace(line)
		if rest == "" {
			break
		}
		// The rest of a one-line body moves to its own line.
		text.WriteString(eol)
		if strings.HasPrefix(rest, "}") {
			text.WriteString(outer)
		} else {
			text.WriteString(inner)
		}
		end := brace + len(line) - len(strings.TrimLeft(line, " \t"))
		return edit{off: brace, end: end, text: text.String()}, nil
	}
	return edit{off: brace, end: brace, text: text.String()}, nil
}

// removeEdit returns the edit that deletes directive comment c. A comment
// alone on its line takes the whole line with it.
func removeEdit(src []byte, base int, fset *token.FileSet, c *ast.Comment) edit {
	start := offset(fset, c.Slash, base)
	end := offset(fset, c.End(), base)
	lineStart := bytes.LastIndexByte(src[:start], '\n') + 1
	if strings.TrimSpace(string(src[lineStart:start])) != "" {
		return edit{off: start, end: end}
	}
	lineEnd := end
	for lineEnd < len(src) && (src[lineEnd] == '\r' || src[lineEnd] == ' ' || src[lineEnd] == '\t') {
		lineEnd++
	}
	switch {
	case lineEnd == len(src):
	case src[lineEnd] == '\n':
		lineEnd++
	default:
		return edit{off: start, end: end}
	}
	return edit{off: lineStart, end: lineEnd}
}

// lineIndent returns the leading blanks of the line containing src[off].
func lineIndent(src []byte, off int) string {
	start := bytes.LastIndexByte(src[:off], '\n') + 1
	end := start
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}

// restOfLine returns src from off up to, not including, the next newline.
func restOfLine(src []byte, off int) string {
	line := src[off:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return string(line)
}

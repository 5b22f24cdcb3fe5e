// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package codegen contains shared utilities for generating code.
package codegen

import (
	"bytes"
	"go/format"
)

// GofmtIfClean returns code run through gofmt if orig, the source code was
// derived from, is itself gofmt-clean. Otherwise code is returned
// unchanged.
//
// Reformatting output derived from unformatted input would turn a small
// rewrite into a diff touching every line of the file, so in that case
// the author's layout wins.
// Errors are gofmt errors on code; orig failing to format is not an error.
func GofmtIfClean(orig, code []byte) ([]byte, error) {
	if !IsGofmtClean(orig) {
		return code, nil
	}
	return format.Source(code)
}

// IsGofmtClean reports whether src is valid Go source already in gofmt
// form.
func IsGofmtClean(src []byte) bool {
	out, err := format.Source(src)
	return err == nil && bytes.Equal(out, src)
}

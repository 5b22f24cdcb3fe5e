// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// The lockvet command checks //lockgen:exclusive directives.
//
// It can be run standalone or as a vet tool:
//
//	go vet -vettool=$(which lockvet) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/tailscale/lockgen/lockvet"
)

func main() {
	singlechecker.Main(lockvet.Analyzer)
}

// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// The lockgen command rewrites functions annotated with
// //lockgen:exclusive so that they hold the named lock for their whole
// body.
package main // import "github.com/tailscale/lockgen/cmd/lockgen"

import (
	"fmt"
	"os"

	"github.com/tailscale/lockgen/cmd/lockgen/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

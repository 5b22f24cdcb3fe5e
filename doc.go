// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package lockgenroot is the root of the lockgen module.
//
// The rewriter is in package rewrite, the lock that rewritten code acquires
// is in package exclusive, and the commands are cmd/lockgen and
// cmd/lockvet.
package lockgenroot

// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build lockgen_debug

package syncs

import deadlock "github.com/sasha-s/go-deadlock"

// DebugEnabled reports whether lock-order checking is compiled in.
const DebugEnabled = true

func init() {
	// Annotated tests may legitimately hold a lock for a long time, so only
	// lock-order inversions are reported, never slow acquisitions.
	deadlock.Opts.DeadlockTimeout = 0
}

// Mutex is a mutual exclusion lock that records the order in which
// goroutines acquire Mutexes and reports inversions.
type Mutex struct {
	deadlock.Mutex
}

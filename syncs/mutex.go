// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !lockgen_debug

package syncs

import "sync"

// DebugEnabled reports whether lock-order checking is compiled in.
const DebugEnabled = false

// Mutex is an alias for sync.Mutex.
//
// It's only not a sync.Mutex when built with the lockgen_debug build tag.
type Mutex = sync.Mutex

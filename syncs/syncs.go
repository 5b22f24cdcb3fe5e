// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package syncs provides the mutex that backs every lockgen lock.
//
// It is a sync.Mutex in normal builds. Building with the lockgen_debug tag
// swaps in a mutex from github.com/sasha-s/go-deadlock, which reports
// inconsistent lock ordering between locks as soon as it is observed.
package syncs

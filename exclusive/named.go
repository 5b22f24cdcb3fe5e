// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package exclusive

import "sync"

var named sync.Map // string => *Mutex

// Named returns the process-wide Mutex called name, creating it on first
// use. All calls with the same name return the same Mutex, so packages can
// share a lock without sharing a variable:
//
//	var dbLock = exclusive.Named("db")
func Named(name string) *Mutex {
	if m, ok := named.Load(name); ok {
		return m.(*Mutex)
	}
	m, _ := named.LoadOrStore(name, new(Mutex))
	return m.(*Mutex)
}

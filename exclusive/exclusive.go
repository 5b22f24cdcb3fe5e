// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package exclusive provides the lock that functions annotated with
// //lockgen:exclusive acquire on entry.
//
// A rewritten function starts with
//
//	defer dbLock.Acquire().Release()
//
// where dbLock is a package-level Mutex:
//
//	var dbLock exclusive.Mutex
//
// Acquire blocks until the caller holds the lock, and the deferred Release
// gives it back when the function returns, panics or exits its goroutine.
//
// A Mutex whose holder panicked is poisoned: the functions it serializes
// usually share state the panic may have left half-updated, so every later
// Acquire panics with a [*PoisonError] until [Mutex.ClearPoison] is called.
// runtime.Goexit, which testing.T.FailNow uses, does not poison.
//
// This package is imported by the code lockgen generates and must stay
// free of dependencies on the rewriter.
package exclusive

import (
	"sync/atomic"

	"github.com/tailscale/lockgen/syncs"
)

// A Mutex is a mutual exclusion lock that is poisoned by a panic in a
// holder. The zero value is an unlocked, unpoisoned Mutex.
//
// A Mutex must not be copied after first use.
type Mutex struct {
	mu       syncs.Mutex
	poisoned atomic.Bool
}

// Acquire locks m, blocking until it is available, and returns the Guard
// that unlocks it. It panics with a *PoisonError if m is poisoned; the lock
// is not held in that case.
//
// Acquire is not reentrant: acquiring a Mutex the goroutine already holds
// deadlocks.
func (m *Mutex) Acquire() Guard {
	m.mu.Lock()
	if m.poisoned.Load() {
		m.mu.Unlock()
		panic(&PoisonError{})
	}
	return Guard{m: m}
}

// TryAcquire is like Acquire but does not block. It reports false if m is
// held by someone else. A poisoned m still panics.
//
// In lockgen_debug builds, calling TryAcquire from the goroutine that
// already holds m is reported as recursive locking and aborts the program
// instead of returning false.
func (m *Mutex) TryAcquire() (Guard, bool) {
	if !m.mu.TryLock() {
		return Guard{}, false
	}
	if m.poisoned.Load() {
		m.mu.Unlock()
		panic(&PoisonError{})
	}
	return Guard{m: m}, true
}

// IsPoisoned reports whether a holder of m panicked since m was created or
// last cleared.
func (m *Mutex) IsPoisoned() bool {
	return m.poisoned.Load()
}

// ClearPoison makes m usable again after a panic in a holder.
func (m *Mutex) ClearPoison() {
	m.poisoned.Store(false)
}

// A Guard is proof that its Mutex is held. It is returned by Acquire and
// consumed by exactly one call to Release.
type Guard struct {
	m *Mutex
}

// Release unlocks the Guard's Mutex.
//
// Release must be called directly by a defer statement for panics to be
// noticed:
//
//	defer mu.Acquire().Release()
//
// If the goroutine is panicking, Release poisons the Mutex, unlocks it and
// continues the panic with the same value.
func (g Guard) Release() {
	if g.m == nil {
		panic("exclusive: Release of zero Guard")
	}
	if r := recover(); r != nil {
		g.m.poisoned.Store(true)
		g.m.mu.Unlock()
		panic(r)
	}
	g.m.mu.Unlock()
}

// PoisonError is the panic value of Acquire on a poisoned Mutex.
type PoisonError struct{}

func (*PoisonError) Error() string {
	return "exclusive: could not lock mutex: poisoned by a panic in a previous holder"
}

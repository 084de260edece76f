// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool bounds how many node computations an executor runs
// concurrently.
//
// The bound is soft: the pool admits more goroutines than the configured
// parallelism (see oversubscribe), and a worker that must block waiting for
// another worker's output declares itself asleep, lending its slot back to
// the pool until it restarts. The lending is what keeps a small pool from
// deadlocking against itself when workers depend on each other.
package workerspool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool limits the number of concurrently running tasks. Create it with New;
// the zero value is not usable.
type Pool struct {
	max int

	mu      sync.Mutex
	cond    sync.Cond // signaled whenever a slot may have freed up
	running int

	// lent counts the slots handed back by sleeping workers.
	lent atomic.Int32
}

// New creates a pool running up to parallelism tasks at a time: n > 0 for a
// fixed bound, -1 for unlimited, 0 for the default of runtime.NumCPU().
func New(parallelism int) *Pool {
	if parallelism == 0 {
		parallelism = runtime.NumCPU()
	}
	p := &Pool{max: parallelism}
	p.cond = sync.Cond{L: &p.mu}
	return p
}

// MaxParallelism returns the pool's bound on concurrently running tasks, -1
// if unlimited.
func (p *Pool) MaxParallelism() int { return p.max }

// IsUnlimited returns whether the pool starts every task immediately, with
// no bound.
func (p *Pool) IsUnlimited() bool { return p.max < 0 }

// Tasks spend part of their time blocked on synchronization rather than
// computing, so the pool admits this many goroutines per parallelism slot.
const oversubscribe = 2

// lockedAtCapacity reports whether no slot is free. Callers must hold p.mu.
func (p *Pool) lockedAtCapacity() bool {
	if p.max < 0 {
		return false
	}
	return p.running >= oversubscribe*p.max+int(p.lent.Load())
}

// WaitToStart blocks until a slot is free, then runs task on a new
// goroutine.
func (p *Pool) WaitToStart(task func()) {
	if p.IsUnlimited() {
		go task()
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.lockedAtCapacity() {
		p.cond.Wait()
	}
	p.lockedStart(task)
}

// StartIfAvailable runs task on a new goroutine if a slot is free right now,
// returning whether it did. On refusal the task is not run and the caller
// keeps it.
func (p *Pool) StartIfAvailable(task func()) bool {
	if p.IsUnlimited() {
		go task()
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lockedAtCapacity() {
		return false
	}
	p.lockedStart(task)
	return true
}

// lockedStart runs task on a new goroutine, keeping tabs on p.running.
// Callers must hold p.mu.
func (p *Pool) lockedStart(task func()) {
	p.running++
	go func() {
		task()
		p.mu.Lock()
		p.running--
		p.cond.Signal()
		p.mu.Unlock()
	}()
}

// WorkerIsAsleep tells the pool that the calling task is about to block
// waiting for another task, lending its slot back until WorkerRestarted. It
// wakes a waiting WaitToStart, so the task being waited for can actually get
// scheduled.
func (p *Pool) WorkerIsAsleep() {
	p.lent.Add(1)
	p.mu.Lock()
	p.cond.Signal()
	p.mu.Unlock()
}

// WorkerRestarted reverses WorkerIsAsleep. Call it when the worker resumes
// computing.
func (p *Pool) WorkerRestarted() {
	p.lent.Add(-1)
}

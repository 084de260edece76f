// Package xsync implements the extra synchronization tools used by the graph
// optimization passes and the local executor.
package xsync

import "sync"

// Latch is a one-shot signal: goroutines wait on it until it is triggered,
// and once triggered it stays triggered forever.
//
// The zero value is not usable, create it with NewLatch.
type Latch struct {
	once sync.Once
	done chan struct{}
}

// NewLatch returns an un-triggered latch.
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Trigger the latch, releasing everyone waiting on it. Triggering an already
// triggered latch is a no-op.
func (l *Latch) Trigger() {
	l.once.Do(func() { close(l.done) })
}

// Wait blocks until the latch is triggered.
func (l *Latch) Wait() {
	<-l.done
}

// Test reports whether the latch has been triggered, without blocking.
func (l *Latch) Test() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// WaitChan returns a channel that is closed when the latch triggers, for use
// in `select` statements.
func (l *Latch) WaitChan() <-chan struct{} {
	return l.done
}

// LatchWithValue is a Latch that carries a value fixed at trigger time: the
// first Trigger wins and later ones are discarded.
//
// The executor uses a LatchWithValue[error] as its one-shot completion
// notification.
type LatchWithValue[T any] struct {
	value T
	latch *Latch
}

// NewLatchWithValue returns an un-triggered latch.
func NewLatchWithValue[T any]() *LatchWithValue[T] {
	return &LatchWithValue[T]{latch: NewLatch()}
}

// Trigger the latch with the given value. Only the first call has any effect.
func (l *LatchWithValue[T]) Trigger(value T) {
	l.latch.once.Do(func() {
		l.value = value
		close(l.latch.done)
	})
}

// Wait blocks until the latch is triggered and returns the value it was
// triggered with.
func (l *LatchWithValue[T]) Wait() T {
	l.latch.Wait()
	return l.value
}

// Test reports whether the latch has been triggered, without blocking.
func (l *LatchWithValue[T]) Test() bool {
	return l.latch.Test()
}

// WaitChan returns a channel that is closed when the latch triggers, for use
// in `select` statements. Read the value with Wait after the channel closes.
func (l *LatchWithValue[T]) WaitChan() <-chan struct{} {
	return l.latch.WaitChan()
}

// Package channel provides a lossy notification channel for consumers that
// must never stall the producer.
package channel

import (
	"sync"
	"sync/atomic"
)

// Lossy is a buffered channel whose sends never block. Values that do not
// fit, or arrive after Close, are dropped and counted.
type Lossy[T any] struct {
	mu      sync.RWMutex
	ch      chan T
	closed  bool
	dropped atomic.Int64
}

// New creates a lossy channel holding up to size values. A size below 1 is
// raised to 1.
func New[T any](size int) *Lossy[T] {
	if size < 1 {
		size = 1
	}
	return &Lossy[T]{ch: make(chan T, size)}
}

// Offer buffers v if there is room and reports whether it was kept.
func (l *Lossy[T]) Offer(v T) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.closed {
		select {
		case l.ch <- v:
			return true
		default:
		}
	}
	l.dropped.Add(1)
	return false
}

// C returns the receive side. It is closed by Close once drained.
func (l *Lossy[T]) C() <-chan T {
	return l.ch
}

// Len returns the number of buffered values.
func (l *Lossy[T]) Len() int {
	return len(l.ch)
}

// Dropped returns how many values were offered but not kept.
func (l *Lossy[T]) Dropped() int64 {
	return l.dropped.Load()
}

// Close ends the stream. Closing twice is a no-op.
func (l *Lossy[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.ch)
}

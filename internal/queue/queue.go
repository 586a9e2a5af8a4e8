// Package queue holds the pending samples of a live channel between flushes.
package queue

import (
	"slices"
	"sync"
)

// Queue collects items from many goroutines and hands them out as one batch.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items in arrival order.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every pending item and returns how many were dropped.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Drain takes every pending item in arrival order. Later pushes start a new
// batch and never alias the returned slice.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	batch := q.items
	q.items = nil
	q.mu.Unlock()
	return batch
}

// DrainSorted drains the queue and stable-sorts the batch with cmp, so items
// comparing equal keep their arrival order.
func (q *Queue[T]) DrainSorted(cmp func(a, b T) int) []T {
	batch := q.Drain()
	slices.SortStableFunc(batch, cmp)
	return batch
}

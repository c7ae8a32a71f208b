// Package buffer provides fixed-capacity ring storage for sensor samples.
// Every buffer serializes its readers and writer through its own lock, so a
// snapshot read never observes a partially applied append.
package buffer

import "sync"

// Ring is a fixed-capacity FIFO. Appending to a full ring evicts the oldest entry.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int // index of the oldest entry
	count int
}

// NewRing creates a ring holding at most capacity items. A capacity below one is raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Append adds one item, evicting the oldest when full
func (r *Ring[T]) Append(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.push(v)
}

// AppendMany adds items in order, evicting as needed
func (r *Ring[T]) AppendMany(vs ...T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Only the trailing cap(items) values can survive
	if len(vs) > len(r.items) {
		vs = vs[len(vs)-len(r.items):]
	}
	for _, v := range vs {
		r.push(v)
	}
}

func (r *Ring[T]) push(v T) {
	capacity := len(r.items)
	if r.count < capacity {
		r.items[(r.head+r.count)%capacity] = v
		r.count++
		return
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % capacity
}

// Latest returns the most recent item
func (r *Ring[T]) Latest() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.items[(r.head+r.count-1)%len(r.items)], true
}

// LastN returns the min(k, Len()) most recent items in arrival order
func (r *Ring[T]) LastN(k int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastN(k)
}

func (r *Ring[T]) lastN(k int) []T {
	if k > r.count {
		k = r.count
	}
	if k <= 0 {
		return []T{}
	}
	out := make([]T, k)
	start := r.head + r.count - k
	for i := 0; i < k; i++ {
		out[i] = r.items[(start+i)%len(r.items)]
	}
	return out
}

// All returns a copy of every item in arrival order
func (r *Ring[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastN(r.count)
}

// Len returns the number of stored items
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the fixed capacity
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// IsFull reports whether Len() == Cap()
func (r *Ring[T]) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count == len(r.items)
}

// FillLevel returns Len()/Cap(), which never exceeds 1.0
func (r *Ring[T]) FillLevel() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return float64(r.count) / float64(len(r.items))
}

// Clear drops every item
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.count = 0
}

// RemoveFunc drops every item for which remove returns true, preserving the
// order of the survivors, and returns how many were dropped
func (r *Ring[T]) RemoveFunc(remove func(T) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]T, 0, r.count)
	for _, v := range r.lastN(r.count) {
		if !remove(v) {
			kept = append(kept, v)
		}
	}
	removed := r.count - len(kept)
	if removed == 0 {
		return 0
	}

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	copy(r.items, kept)
	r.head = 0
	r.count = len(kept)
	return removed
}

// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package ringbuffer

// initialUnboundedSize is the first allocation of an unbounded buffer.
// Storage doubles each time it fills.
const initialUnboundedSize = 8

// Buffer is a circular FIFO queue of elements of type T.
//
// The backing slice is used as a ring: head indexes the oldest element
// and count elements follow it, wrapping at len(data). A bounded buffer
// allocates its full capacity up front and never reallocates. An
// unbounded buffer starts small and doubles, re-linearizing its
// contents on growth.
type Buffer[T any] struct {
	data     []T
	head     int
	count    int
	capacity Capacity
}

// New creates an empty buffer with the given capacity policy.
func New[T any](capacity Capacity) *Buffer[T] {
	size := initialUnboundedSize
	if capacity.IsBounded() {
		size = capacity.Limit()
	}
	return &Buffer[T]{
		data:     make([]T, size),
		capacity: capacity,
	}
}

// Push appends value at the tail. When the buffer is bounded and full,
// the oldest element is discarded first and Push returns true.
// Unbounded buffers grow and always return false.
func (b *Buffer[T]) Push(value T) (evicted bool) {
	if b.count == len(b.data) {
		if b.capacity.IsBounded() {
			// Overwrite the oldest slot and advance head past it.
			b.data[b.head] = value
			b.head = (b.head + 1) % len(b.data)
			return true
		}
		b.grow()
	}
	b.data[(b.head+b.count)%len(b.data)] = value
	b.count++
	return false
}

// Dequeue removes and returns the oldest element. The second return
// value is false when the buffer is empty.
func (b *Buffer[T]) Dequeue() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	value := b.data[b.head]
	b.data[b.head] = zero // release references for GC
	b.head = (b.head + 1) % len(b.data)
	b.count--
	return value, true
}

// Peek returns the oldest element without removing it.
func (b *Buffer[T]) Peek() (T, bool) {
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.data[b.head], true
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int {
	return b.count
}

// IsEmpty reports whether the buffer holds no elements.
func (b *Buffer[T]) IsEmpty() bool {
	return b.count == 0
}

// IsFull reports whether a bounded buffer is at its limit. An unbounded
// buffer is never full.
func (b *Buffer[T]) IsFull() bool {
	return b.capacity.IsBounded() && b.count == b.capacity.Limit()
}

// Capacity returns the buffer's capacity policy.
func (b *Buffer[T]) Capacity() Capacity {
	return b.capacity
}

// Clear drops every buffered element.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.head = 0
	b.count = 0
}

func (b *Buffer[T]) grow() {
	grown := make([]T, 2*len(b.data))
	for i := 0; i < b.count; i++ {
		grown[i] = b.data[(b.head+i)%len(b.data)]
	}
	b.data = grown
	b.head = 0
}

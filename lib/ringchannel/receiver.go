// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package ringchannel

import (
	"context"
	"sync"

	"github.com/crater-avionics/crater/lib/ringbuffer"
)

// Receiver is a read handle on a Channel with its own buffer. Receivers
// are safe for concurrent use, but values are consumed: two goroutines
// reading one Receiver split the stream between them. Use Clone for an
// independent copy of the stream.
type Receiver[T any] struct {
	channel *Channel[T]
	id      uint64

	mutex  sync.Mutex
	ready  *sync.Cond
	buffer *ringbuffer.Buffer[T]
	// closed mirrors the channel's closed flag.
	closed bool
	// released is set by Close; the receiver is no longer in the
	// channel and every read fails.
	released bool
	dropped  uint64

	// group and index are the select registration, if any.
	group *Select
	index int
}

func newReceiver[T any](channel *Channel[T], id uint64, capacity ringbuffer.Capacity, closed bool) *Receiver[T] {
	receiver := &Receiver[T]{
		channel: channel,
		id:      id,
		buffer:  ringbuffer.New[T](capacity),
		closed:  closed,
	}
	receiver.ready = sync.NewCond(&receiver.mutex)
	return receiver
}

// ID identifies the receiver within its channel.
func (receiver *Receiver[T]) ID() uint64 {
	return receiver.id
}

// Recv returns the oldest buffered value, blocking while the buffer is
// empty and the channel open. Returns ErrClosed once the channel is
// closed and the buffer drained.
func (receiver *Receiver[T]) Recv() (T, error) {
	return receiver.RecvContext(context.Background())
}

// RecvContext is Recv with cancellation. Returns ctx.Err() if ctx ends
// before a value arrives.
func (receiver *Receiver[T]) RecvContext(ctx context.Context) (T, error) {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			receiver.mutex.Lock()
			receiver.ready.Broadcast()
			receiver.mutex.Unlock()
		})
		defer stop()
	}

	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()
	for {
		value, err := receiver.takeLocked()
		if err != ErrEmpty {
			return value, err
		}
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		receiver.ready.Wait()
	}
}

// TryRecv returns the oldest buffered value without blocking. Returns
// ErrEmpty if nothing is buffered and the channel is open, ErrClosed if
// the channel is closed and the buffer drained.
func (receiver *Receiver[T]) TryRecv() (T, error) {
	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()
	return receiver.takeLocked()
}

// takeLocked dequeues one value. On the closed-and-drained path it
// acknowledges the closure to the select group so the slot stops
// reporting ready.
func (receiver *Receiver[T]) takeLocked() (T, error) {
	var zero T
	if receiver.released {
		return zero, ErrClosed
	}
	if value, ok := receiver.buffer.Dequeue(); ok {
		if receiver.group != nil {
			receiver.group.setPending(receiver.index, receiver.buffer.Len())
		}
		return value, nil
	}
	if receiver.closed {
		if receiver.group != nil {
			receiver.group.acknowledge(receiver.index)
		}
		return zero, ErrClosed
	}
	return zero, ErrEmpty
}

// Len returns the number of buffered values.
func (receiver *Receiver[T]) Len() int {
	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()
	return receiver.buffer.Len()
}

// IsEmpty reports whether the buffer is empty.
func (receiver *Receiver[T]) IsEmpty() bool {
	return receiver.Len() == 0
}

// IsFull reports whether a bounded buffer is at capacity. The next
// value sent will evict the oldest buffered one.
func (receiver *Receiver[T]) IsFull() bool {
	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()
	return receiver.buffer.IsFull()
}

// Capacity returns the receiver's buffer policy.
func (receiver *Receiver[T]) Capacity() ringbuffer.Capacity {
	return receiver.buffer.Capacity()
}

// Dropped returns how many values this receiver lost to overflow.
func (receiver *Receiver[T]) Dropped() uint64 {
	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()
	return receiver.dropped
}

// IsClosed reports whether the channel is closed. Buffered values may
// still be readable.
func (receiver *Receiver[T]) IsClosed() bool {
	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()
	return receiver.closed || receiver.released
}

// Clone adds a sibling receiver on the same channel with the same
// capacity. The clone starts empty.
func (receiver *Receiver[T]) Clone() *Receiver[T] {
	return receiver.channel.AddReceiver(receiver.buffer.Capacity())
}

// CloneWithCapacity adds a sibling receiver with a different capacity.
func (receiver *Receiver[T]) CloneWithCapacity(capacity ringbuffer.Capacity) *Receiver[T] {
	return receiver.channel.AddReceiver(capacity)
}

// Close removes the receiver from its channel and from any select
// group. Buffered values are discarded. Close is idempotent and always
// returns nil.
func (receiver *Receiver[T]) Close() error {
	receiver.channel.removeReceiver(receiver.id)

	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()
	if receiver.released {
		return nil
	}
	receiver.released = true
	receiver.buffer.Clear()
	if receiver.group != nil {
		receiver.group.release(receiver.index)
		receiver.group = nil
	}
	receiver.ready.Broadcast()
	return nil
}

// push is called by the channel with its lock held.
func (receiver *Receiver[T]) push(value T) (dropped uint64, evicted bool) {
	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()

	if receiver.buffer.Push(value) {
		receiver.dropped++
		evicted = true
	}
	if receiver.group != nil {
		receiver.group.setPending(receiver.index, receiver.buffer.Len())
	}
	receiver.ready.Signal()
	return receiver.dropped, evicted
}

// setClosed is called by the channel with its lock held.
func (receiver *Receiver[T]) setClosed(closed bool) {
	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()

	receiver.closed = closed
	if receiver.group != nil {
		if closed {
			receiver.group.markClosed(receiver.index)
		} else {
			receiver.group.markOpen(receiver.index)
		}
	}
	receiver.ready.Broadcast()
}

func (receiver *Receiver[T]) attach(group *Select, index int) error {
	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()

	if receiver.released {
		return ErrClosed
	}
	if receiver.group != nil {
		return ErrAlreadySelected
	}
	receiver.group = group
	receiver.index = index
	group.activate(index, receiver.buffer.Len(), receiver.closed)
	return nil
}

func (receiver *Receiver[T]) detach(group *Select) {
	receiver.mutex.Lock()
	defer receiver.mutex.Unlock()

	if receiver.group == group {
		receiver.group = nil
	}
}

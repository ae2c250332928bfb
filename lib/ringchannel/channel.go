// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package ringchannel

import (
	"sync"

	"github.com/crater-avionics/crater/lib/ringbuffer"
)

// DropFunc is called when a bounded receiver evicts an unread value.
// receiverID identifies the receiver within its channel and total is
// that receiver's cumulative dropped count. It runs with the channel
// lock held and must not call back into the channel.
type DropFunc func(receiverID uint64, total uint64)

// Option configures a Channel.
type Option func(*options)

type options struct {
	onDrop DropFunc
}

// OnDrop installs a callback for receiver overflow.
func OnDrop(fn DropFunc) Option {
	return func(o *options) {
		o.onDrop = fn
	}
}

// Stats is a point-in-time snapshot of a channel's counters.
type Stats struct {
	Senders   int
	Receivers int
	// Sent counts Send calls, not per-receiver deliveries.
	Sent uint64
	// Dropped is the total evictions across all receivers the channel
	// has ever had, including receivers since closed.
	Dropped uint64
	Closed  bool
}

// Channel is a broadcast point from zero or more senders to zero or
// more receivers. All methods are safe for concurrent use.
type Channel[T any] struct {
	mutex     sync.Mutex
	receivers map[uint64]*Receiver[T]
	// order holds receiver IDs in registration order so fan-out visits
	// receivers deterministically.
	order   []uint64
	nextID  uint64
	senders int
	closed  bool
	sent    uint64
	dropped uint64
	onDrop  DropFunc
}

// New creates an open channel with no senders or receivers.
func New[T any](opts ...Option) *Channel[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Channel[T]{
		receivers: make(map[uint64]*Receiver[T]),
		onDrop:    o.onDrop,
	}
}

// AddSender returns a new sender handle. If the channel was closed
// because its previous senders all closed, it reopens: receivers
// return to the open state and select slots stop reporting closure.
func (channel *Channel[T]) AddSender() *Sender[T] {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()

	channel.senders++
	if channel.closed {
		channel.closed = false
		for _, id := range channel.order {
			channel.receivers[id].setClosed(false)
		}
	}
	return &Sender[T]{channel: channel}
}

// AddReceiver registers a new receiver with its own buffer. The
// receiver sees only values sent after this call. A receiver added to a
// closed channel starts closed.
func (channel *Channel[T]) AddReceiver(capacity ringbuffer.Capacity) *Receiver[T] {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()

	channel.nextID++
	receiver := newReceiver(channel, channel.nextID, capacity, channel.closed)
	channel.receivers[receiver.id] = receiver
	channel.order = append(channel.order, receiver.id)
	return receiver
}

// Stats returns the channel's current counters.
func (channel *Channel[T]) Stats() Stats {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()
	return Stats{
		Senders:   channel.senders,
		Receivers: len(channel.receivers),
		Sent:      channel.sent,
		Dropped:   channel.dropped,
		Closed:    channel.closed,
	}
}

// IsClosed reports whether the channel has no senders after having had
// at least one.
func (channel *Channel[T]) IsClosed() bool {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()
	return channel.closed
}

func (channel *Channel[T]) send(value T) {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()

	channel.sent++
	for _, id := range channel.order {
		receiver := channel.receivers[id]
		if total, evicted := receiver.push(value); evicted {
			channel.dropped++
			if channel.onDrop != nil {
				channel.onDrop(id, total)
			}
		}
	}
}

func (channel *Channel[T]) removeSender() {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()

	channel.senders--
	if channel.senders > 0 {
		return
	}
	channel.closed = true
	for _, id := range channel.order {
		channel.receivers[id].setClosed(true)
	}
}

func (channel *Channel[T]) removeReceiver(id uint64) {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()

	if _, ok := channel.receivers[id]; !ok {
		return
	}
	delete(channel.receivers, id)
	for i, candidate := range channel.order {
		if candidate == id {
			channel.order = append(channel.order[:i], channel.order[i+1:]...)
			break
		}
	}
}

// Sender is a write handle on a Channel. A Sender is safe for
// concurrent use, though values from concurrent Send calls have no
// defined relative order.
type Sender[T any] struct {
	channel *Channel[T]
	mutex   sync.Mutex
	closed  bool
}

// Send delivers value to every live receiver. It never blocks on a slow
// receiver. Returns ErrClosed if this sender has been closed.
func (sender *Sender[T]) Send(value T) error {
	sender.mutex.Lock()
	defer sender.mutex.Unlock()
	if sender.closed {
		return ErrClosed
	}
	sender.channel.send(value)
	return nil
}

// Close releases the sender. Closing the last sender closes the
// channel. Close is idempotent and always returns nil; the error return
// satisfies io.Closer.
func (sender *Sender[T]) Close() error {
	sender.mutex.Lock()
	defer sender.mutex.Unlock()
	if sender.closed {
		return nil
	}
	sender.closed = true
	sender.channel.removeSender()
	return nil
}

// Channel returns the channel this sender writes to.
func (sender *Sender[T]) Channel() *Channel[T] {
	return sender.channel
}

// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"reflect"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/ringchannel"
)

// Sender publishes timestamped values to one channel.
type Sender[T any] struct {
	name   string
	sender *ringchannel.Sender[Timestamped[T]]
}

// Name returns the physical channel name, after remapping.
func (s *Sender[T]) Name() string {
	return s.name
}

// Send delivers value, stamped with ts, to every receiver of the
// channel. Returns ErrClosed after Close.
func (s *Sender[T]) Send(ts clock.Timestamp, value T) error {
	return s.sender.Send(Timestamped[T]{Timestamp: ts, Value: value})
}

// SendNow stamps value with the current reading of c and sends it.
func (s *Sender[T]) SendNow(c clock.Clock, value T) error {
	return s.Send(clock.Now(c), value)
}

// Close releases the sender. On a single-producer channel this frees
// the producer slot; when it is the channel's last sender, receivers
// drain and then observe ErrClosed.
func (s *Sender[T]) Close() error {
	return s.sender.Close()
}

// Receiver consumes timestamped values from one channel. It embeds the
// underlying ring receiver, so Recv, RecvContext, TryRecv, Len,
// Capacity, IsEmpty, IsFull, Dropped, Clone, and Close are all
// available, and it can join a ringchannel.Select.
type Receiver[T any] struct {
	*ringchannel.Receiver[Timestamped[T]]
	name string
}

// Name returns the physical channel name, after remapping.
func (r *Receiver[T]) Name() string {
	return r.name
}

// anyReader is a receiver with its payload boxed into an interface.
type anyReader interface {
	ringchannel.Selectable
	RecvContext(ctx context.Context) (Timestamped[any], error)
	TryRecv() (Timestamped[any], error)
	Len() int
	Dropped() uint64
	IsClosed() bool
	Close() error
}

type anyAdapter[T any] struct {
	*ringchannel.Receiver[Timestamped[T]]
}

func (a anyAdapter[T]) RecvContext(ctx context.Context) (Timestamped[any], error) {
	sample, err := a.Receiver.RecvContext(ctx)
	return box(sample), err
}

func (a anyAdapter[T]) TryRecv() (Timestamped[any], error) {
	sample, err := a.Receiver.TryRecv()
	return box(sample), err
}

func box[T any](sample Timestamped[T]) Timestamped[any] {
	return Timestamped[any]{Timestamp: sample.Timestamp, Value: sample.Value}
}

// AnyReceiver is a receiver whose payload type is known only at run
// time. Values arrive boxed in Timestamped[any]. It can join a
// ringchannel.Select like a typed receiver.
type AnyReceiver struct {
	anyReader
	name        string
	payloadType reflect.Type
}

// Name returns the physical channel name.
func (r *AnyReceiver) Name() string {
	return r.name
}

// Type returns the channel's payload type.
func (r *AnyReceiver) Type() reflect.Type {
	return r.payloadType
}

// Recv blocks until a value arrives or the channel closes.
func (r *AnyReceiver) Recv() (Timestamped[any], error) {
	return r.RecvContext(context.Background())
}

// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package ringchannel implements the broadcast channel underneath the
// telemetry bus.
//
// A [Channel] has any number of [Sender] handles and any number of
// [Receiver] handles. Every value sent is copied into the buffer of
// every live receiver, so consumers read at their own pace. Each
// receiver chooses its own [ringbuffer.Capacity]: bounded receivers
// lose their oldest unread values when they fall behind and count the
// loss in [Receiver.Dropped].
//
// When the last sender closes, the channel is closed: receivers drain
// what they hold and then report [ErrClosed]. Adding a sender to a
// closed channel reopens it.
//
// A [Select] waits on many receivers, possibly of different payload
// types, and reports which one is ready. Receivers update their select
// slot on every push, dequeue, and close, so the group never has to
// poll.
//
// Locks are always taken in the order channel, receiver, select. No
// lock is held across a blocking wait except by the wait itself.
package ringchannel

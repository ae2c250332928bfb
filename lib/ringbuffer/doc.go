// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package ringbuffer provides the per-consumer FIFO backlog used by
// telemetry receivers.
//
// A [Buffer] is either bounded or unbounded, selected by its
// [Capacity]. Push never blocks and never fails: a bounded buffer that
// is full discards its oldest unread element to make room. Producers in
// the simulation must never stall on a slow consumer, so losing old
// samples is preferred to back-pressure. Push reports whether an
// element was evicted so the owner can keep a dropped counter.
//
// Buffer is not safe for concurrent use. Each receiver guards its
// buffer with its own mutex.
//
// This package has no Crater-internal dependencies.
package ringbuffer

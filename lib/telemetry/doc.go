// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry is the typed publish-subscribe bus that connects
// nodes.
//
// A [Service] maps channel names to broadcast channels of any payload
// type. The first publish or subscribe on a name fixes the channel's
// payload type and [Discipline]; later requests that disagree fail
// with [*WrongChannelDataTypeError] or [*WrongChannelTypeError]. A
// single-producer channel admits one live [Sender] at a time.
//
// Go methods cannot take type parameters, so the typed entry points are
// package functions:
//
//	svc, _ := telemetry.NewService()
//	out, err := telemetry.Publish[float64](svc, "/rocket/altitude")
//	in, err := telemetry.Subscribe[float64](svc, "/rocket/altitude", ringbuffer.Bounded(16))
//	out.Send(clock.Now(c), 1200.5)
//	sample, err := in.TryRecv()
//
// Every value travels as a [Timestamped] pair. Receivers are
// [ringchannel.Selectable], so one goroutine can wait on many channels
// of different types with a [ringchannel.Select].
//
// A service is an ordinary value owned by the harness and passed to
// nodes explicitly. There is no process-wide registry.
package telemetry

// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"errors"
	"fmt"

	"github.com/crater-avionics/crater/lib/ringchannel"
)

var (
	// ErrWrongChannelDataType is matched by *WrongChannelDataTypeError.
	ErrWrongChannelDataType = errors.New("wrong channel data type")

	// ErrWrongChannelType is matched by *WrongChannelTypeError.
	ErrWrongChannelType = errors.New("wrong channel type")

	// ErrAlreadyHasProducer is returned when publishing to a
	// single-producer channel whose sender is still open.
	ErrAlreadyHasProducer = errors.New("channel already has a producer")

	// ErrInvalidChannelName is returned for names that are not valid
	// channel paths.
	ErrInvalidChannelName = errors.New("invalid channel name")

	// ErrUnknownChannel is returned by SubscribeAny for a name nothing
	// has published or subscribed to, since the payload type is not
	// yet known.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrEmpty and ErrClosed are the receiver control-flow errors.
	ErrEmpty  = ringchannel.ErrEmpty
	ErrClosed = ringchannel.ErrClosed
)

// WrongChannelDataTypeError reports a payload type that differs from
// the type the channel was registered with.
type WrongChannelDataTypeError struct {
	Channel   string
	Requested string
	Expected  string
}

func (e *WrongChannelDataTypeError) Error() string {
	return fmt.Sprintf("channel %s carries %s, requested %s", e.Channel, e.Expected, e.Requested)
}

// Is matches ErrWrongChannelDataType.
func (e *WrongChannelDataTypeError) Is(target error) bool {
	return target == ErrWrongChannelDataType
}

// WrongChannelTypeError reports a discipline that differs from the one
// the channel was registered with.
type WrongChannelTypeError struct {
	Channel   string
	Requested Discipline
	Expected  Discipline
}

func (e *WrongChannelTypeError) Error() string {
	return fmt.Sprintf("channel %s is %s, requested %s", e.Channel, e.Expected, e.Requested)
}

// Is matches ErrWrongChannelType.
func (e *WrongChannelTypeError) Is(target error) bool {
	return target == ErrWrongChannelType
}

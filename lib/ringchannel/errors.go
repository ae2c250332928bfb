// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package ringchannel

import "errors"

var (
	// ErrEmpty is returned by non-blocking operations when nothing is
	// available yet. It is ordinary control flow, not a failure.
	ErrEmpty = errors.New("ringchannel: empty")

	// ErrClosed is returned once a channel has no senders and the
	// receiver's buffer is drained, and by any operation on a handle
	// that has been closed.
	ErrClosed = errors.New("ringchannel: closed")

	// ErrNoMembers is returned by Select.Ready when the group has no
	// active members, since the wait could never end.
	ErrNoMembers = errors.New("ringchannel: select has no members")

	// ErrNotSelected is returned by Select.Remove for an index that was
	// never issued or has already been removed.
	ErrNotSelected = errors.New("ringchannel: index is not an active select member")

	// ErrAlreadySelected is returned by Select.Add when the receiver is
	// already registered with a select group.
	ErrAlreadySelected = errors.New("ringchannel: receiver already belongs to a select group")
)

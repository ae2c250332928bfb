// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package ringchannel

import (
	"context"
	"math/rand/v2"
	"sync"
)

// SlotState is the close-handshake state of one select member.
type SlotState uint8

const (
	// SlotOpen means the member's channel has live senders.
	SlotOpen SlotState = iota
	// SlotClosed means the channel closed and the member has not yet
	// observed it. The slot reports ready so the waiter reads ErrClosed.
	SlotClosed
	// SlotAcknowledged means the member returned ErrClosed once. The
	// slot no longer reports ready unless values arrive after a reopen.
	SlotAcknowledged
	// SlotRemoved means the member left the group. Its index is never
	// reused.
	SlotRemoved
)

func (state SlotState) String() string {
	switch state {
	case SlotOpen:
		return "open"
	case SlotClosed:
		return "closed"
	case SlotAcknowledged:
		return "acknowledged"
	case SlotRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Selectable is a receiver that can join a Select. Every Receiver
// satisfies it, as does any type embedding one.
type Selectable interface {
	attach(group *Select, index int) error
	detach(group *Select)
}

type slot struct {
	pending int
	state   SlotState
}

func (s slot) isReady() bool {
	return s.state != SlotRemoved && (s.pending > 0 || s.state == SlotClosed)
}

// SelectOption configures a Select.
type SelectOption func(*Select)

// WithRand sets the random source used to break ties between ready
// members. Tests and deterministic replays pass a seeded source.
func WithRand(source *rand.Rand) SelectOption {
	return func(group *Select) {
		group.random = source
	}
}

// Select waits on a dynamic set of receivers and reports which one is
// ready. A member is ready when it has buffered values or when its
// channel has closed and it has not yet read ErrClosed.
//
// Ready picks uniformly at random among ready members so a busy channel
// cannot starve a quiet one. Select is safe for concurrent use, but it
// is designed for a single waiting goroutine per group.
type Select struct {
	mutex   sync.Mutex
	changed *sync.Cond
	slots   []slot
	members []Selectable
	active  int
	random  *rand.Rand
	// candidates is scratch space for Ready, reused to avoid an
	// allocation per call.
	candidates []int
}

// NewSelect creates an empty select group.
func NewSelect(opts ...SelectOption) *Select {
	group := &Select{}
	group.changed = sync.NewCond(&group.mutex)
	for _, opt := range opts {
		opt(group)
	}
	if group.random == nil {
		group.random = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return group
}

// Add registers member and returns its index. Indices are stable for
// the life of the group and never reused. Values already buffered in
// the member count as ready immediately.
func (group *Select) Add(member Selectable) (int, error) {
	group.mutex.Lock()
	index := len(group.slots)
	group.slots = append(group.slots, slot{state: SlotRemoved})
	group.members = append(group.members, member)
	group.mutex.Unlock()

	// The member locks itself and then calls activate, preserving the
	// receiver-then-select lock order.
	if err := member.attach(group, index); err != nil {
		group.mutex.Lock()
		group.members[index] = nil
		group.mutex.Unlock()
		return -1, err
	}
	return index, nil
}

// Remove unregisters the member at index. The member itself is left
// open and can join another group.
func (group *Select) Remove(index int) error {
	group.mutex.Lock()
	if index < 0 || index >= len(group.slots) || group.slots[index].state == SlotRemoved {
		group.mutex.Unlock()
		return ErrNotSelected
	}
	member := group.members[index]
	group.mutex.Unlock()

	// Unregister from the receiver before touching the slot so a
	// concurrent push cannot resurrect it.
	member.detach(group)
	group.release(index)
	return nil
}

// Active returns the number of members not yet removed.
func (group *Select) Active() int {
	group.mutex.Lock()
	defer group.mutex.Unlock()
	return group.active
}

// State returns the handshake state of the slot at index.
func (group *Select) State(index int) SlotState {
	group.mutex.Lock()
	defer group.mutex.Unlock()
	if index < 0 || index >= len(group.slots) {
		return SlotRemoved
	}
	return group.slots[index].state
}

// Close removes every member. Waiters blocked in Ready return
// ErrNoMembers.
func (group *Select) Close() {
	group.mutex.Lock()
	var members []Selectable
	for index, member := range group.members {
		if member != nil && group.slots[index].state != SlotRemoved {
			members = append(members, member)
		}
	}
	group.mutex.Unlock()

	for _, member := range members {
		member.detach(group)
	}

	group.mutex.Lock()
	defer group.mutex.Unlock()
	for index := range group.slots {
		group.slots[index] = slot{state: SlotRemoved}
		group.members[index] = nil
	}
	group.active = 0
	group.changed.Broadcast()
}

// Ready blocks until a member is ready and returns its index.
func (group *Select) Ready() (int, error) {
	return group.ReadyContext(context.Background())
}

// ReadyContext is Ready with cancellation. Returns ctx.Err() if ctx
// ends first, and ErrNoMembers if the group is or becomes empty.
func (group *Select) ReadyContext(ctx context.Context) (int, error) {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			group.mutex.Lock()
			group.changed.Broadcast()
			group.mutex.Unlock()
		})
		defer stop()
	}

	group.mutex.Lock()
	defer group.mutex.Unlock()
	for {
		if group.active == 0 {
			return -1, ErrNoMembers
		}
		if index, ok := group.pickLocked(); ok {
			return index, nil
		}
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		group.changed.Wait()
	}
}

// TryReady returns a ready member's index without blocking, or
// ErrEmpty if none is ready.
func (group *Select) TryReady() (int, error) {
	group.mutex.Lock()
	defer group.mutex.Unlock()
	if group.active == 0 {
		return -1, ErrNoMembers
	}
	if index, ok := group.pickLocked(); ok {
		return index, nil
	}
	return -1, ErrEmpty
}

func (group *Select) pickLocked() (int, bool) {
	group.candidates = group.candidates[:0]
	for index, s := range group.slots {
		if s.isReady() {
			group.candidates = append(group.candidates, index)
		}
	}
	switch len(group.candidates) {
	case 0:
		return -1, false
	case 1:
		return group.candidates[0], true
	default:
		return group.candidates[group.random.IntN(len(group.candidates))], true
	}
}

// The methods below are called by receivers holding their own lock.

func (group *Select) activate(index, pending int, closed bool) {
	group.mutex.Lock()
	defer group.mutex.Unlock()

	state := SlotOpen
	if closed {
		state = SlotClosed
	}
	group.slots[index] = slot{pending: pending, state: state}
	group.active++
	group.changed.Broadcast()
}

func (group *Select) setPending(index, pending int) {
	group.mutex.Lock()
	defer group.mutex.Unlock()

	current := &group.slots[index]
	if current.state == SlotRemoved {
		return
	}
	grew := pending > current.pending
	current.pending = pending
	if grew {
		group.changed.Signal()
	}
}

func (group *Select) markClosed(index int) {
	group.mutex.Lock()
	defer group.mutex.Unlock()

	if group.slots[index].state == SlotOpen {
		group.slots[index].state = SlotClosed
		group.changed.Broadcast()
	}
}

func (group *Select) markOpen(index int) {
	group.mutex.Lock()
	defer group.mutex.Unlock()

	switch group.slots[index].state {
	case SlotClosed, SlotAcknowledged:
		group.slots[index].state = SlotOpen
	}
}

func (group *Select) acknowledge(index int) {
	group.mutex.Lock()
	defer group.mutex.Unlock()

	if group.slots[index].state == SlotClosed {
		group.slots[index].state = SlotAcknowledged
	}
}

func (group *Select) release(index int) {
	group.mutex.Lock()
	defer group.mutex.Unlock()

	if group.slots[index].state == SlotRemoved {
		return
	}
	group.slots[index] = slot{state: SlotRemoved}
	group.members[index] = nil
	group.active--
	group.changed.Broadcast()
}

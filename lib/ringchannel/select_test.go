// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package ringchannel

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/crater-avionics/crater/lib/ringbuffer"
	"github.com/crater-avionics/crater/lib/testutil"
)

func seeded() SelectOption {
	return WithRand(rand.New(rand.NewPCG(1, 2)))
}

func TestSelectFairness(t *testing.T) {
	t.Parallel()
	const members = 5
	group := NewSelect(seeded())

	var senders []*Sender[int]
	var receivers []*Receiver[int]
	for range members {
		channel := New[int]()
		receiver := channel.AddReceiver(ringbuffer.Unbounded())
		if _, err := group.Add(receiver); err != nil {
			t.Fatalf("Add: %v", err)
		}
		senders = append(senders, channel.AddSender())
		receivers = append(receivers, receiver)
	}

	visits := make([]int, members)
	for range 1000 {
		// Keep every member ready so each call is a tie.
		for i, sender := range senders {
			if receivers[i].IsEmpty() {
				sender.Send(i)
			}
		}
		index, err := group.Ready()
		if err != nil {
			t.Fatalf("Ready: %v", err)
		}
		if receivers[index].IsEmpty() {
			t.Fatalf("Ready returned %d whose buffer is empty", index)
		}
		if _, err := receivers[index].TryRecv(); err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		visits[index]++
	}
	for index, count := range visits {
		if count == 0 {
			t.Errorf("member %d was never selected: %v", index, visits)
		}
	}
}

func TestSelectHeterogeneousMembers(t *testing.T) {
	t.Parallel()
	group := NewSelect(seeded())

	numbers := New[int]()
	words := New[string]()
	numberReceiver := numbers.AddReceiver(ringbuffer.Unbounded())
	wordReceiver := words.AddReceiver(ringbuffer.Unbounded())
	numberIndex, _ := group.Add(numberReceiver)
	wordIndex, _ := group.Add(wordReceiver)

	if _, err := group.TryReady(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("TryReady with nothing buffered: got %v, want ErrEmpty", err)
	}

	words.AddSender().Send("hello")
	index, err := group.TryReady()
	if err != nil || index != wordIndex {
		t.Fatalf("TryReady: got %d, %v; want %d", index, err, wordIndex)
	}
	wordReceiver.TryRecv()

	numbers.AddSender().Send(3)
	index, err = group.TryReady()
	if err != nil || index != numberIndex {
		t.Fatalf("TryReady: got %d, %v; want %d", index, err, numberIndex)
	}
}

func TestSelectCountsExistingBacklog(t *testing.T) {
	t.Parallel()
	channel := New[int]()
	receiver := channel.AddReceiver(ringbuffer.Unbounded())
	channel.AddSender().Send(1)

	group := NewSelect()
	index, _ := group.Add(receiver)
	if got, err := group.TryReady(); err != nil || got != index {
		t.Errorf("TryReady: got %d, %v; want %d", got, err, index)
	}
}

func TestSelectCloseHandshake(t *testing.T) {
	t.Parallel()
	group := NewSelect(seeded())

	closing := New[int]()
	closingReceiver := closing.AddReceiver(ringbuffer.Unbounded())
	closingSender := closing.AddSender()
	closingIndex, _ := group.Add(closingReceiver)

	quiet := New[int]()
	quietReceiver := quiet.AddReceiver(ringbuffer.Unbounded())
	quiet.AddSender()
	group.Add(quietReceiver)

	closingSender.Send(1)
	closingSender.Send(2)
	closingSender.Close()

	for _, want := range []int{1, 2} {
		index, err := group.Ready()
		if err != nil || index != closingIndex {
			t.Fatalf("Ready: got %d, %v; want %d", index, err, closingIndex)
		}
		if value, _ := closingReceiver.TryRecv(); value != want {
			t.Errorf("got %d, want %d", value, want)
		}
	}

	// Drained and closed: reported once so the reader observes ErrClosed.
	index, err := group.Ready()
	if err != nil || index != closingIndex {
		t.Fatalf("Ready after drain: got %d, %v; want %d", index, err, closingIndex)
	}
	if group.State(closingIndex) != SlotClosed {
		t.Errorf("state before ack: got %v, want closed", group.State(closingIndex))
	}
	if _, err := closingReceiver.Recv(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Recv: got %v, want ErrClosed", err)
	}
	if group.State(closingIndex) != SlotAcknowledged {
		t.Errorf("state after ack: got %v, want acknowledged", group.State(closingIndex))
	}

	// Acknowledged: no more spurious wakeups.
	if _, err := group.TryReady(); !errors.Is(err, ErrEmpty) {
		t.Errorf("TryReady after ack: got %v, want ErrEmpty", err)
	}
}

func TestSelectReopenAfterAcknowledge(t *testing.T) {
	t.Parallel()
	channel := New[int]()
	receiver := channel.AddReceiver(ringbuffer.Unbounded())
	group := NewSelect()
	index, _ := group.Add(receiver)

	channel.AddSender().Close()
	receiver.TryRecv()
	if group.State(index) != SlotAcknowledged {
		t.Fatalf("state: got %v, want acknowledged", group.State(index))
	}

	sender := channel.AddSender()
	if group.State(index) != SlotOpen {
		t.Fatalf("state after reopen: got %v, want open", group.State(index))
	}
	sender.Send(1)
	if got, err := group.TryReady(); err != nil || got != index {
		t.Errorf("TryReady: got %d, %v; want %d", got, err, index)
	}
}

func TestSelectRemove(t *testing.T) {
	t.Parallel()
	group := NewSelect()
	channel := New[int]()
	first := channel.AddReceiver(ringbuffer.Unbounded())
	second := channel.AddReceiver(ringbuffer.Unbounded())
	firstIndex, _ := group.Add(first)
	secondIndex, _ := group.Add(second)

	if err := group.Remove(firstIndex); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := group.Remove(firstIndex); !errors.Is(err, ErrNotSelected) {
		t.Errorf("second Remove: got %v, want ErrNotSelected", err)
	}
	if err := group.Remove(99); !errors.Is(err, ErrNotSelected) {
		t.Errorf("Remove(99): got %v, want ErrNotSelected", err)
	}
	if group.Active() != 1 {
		t.Errorf("Active: got %d, want 1", group.Active())
	}

	channel.AddSender().Send(1)
	if got, err := group.TryReady(); err != nil || got != secondIndex {
		t.Errorf("TryReady: got %d, %v; want %d", got, err, secondIndex)
	}

	// A removed receiver can join another group.
	other := NewSelect()
	if _, err := other.Add(first); err != nil {
		t.Errorf("Add to second group: %v", err)
	}
	if _, err := group.Add(first); !errors.Is(err, ErrAlreadySelected) {
		t.Errorf("double Add: got %v, want ErrAlreadySelected", err)
	}
}

func TestSelectReceiverCloseLeavesGroup(t *testing.T) {
	t.Parallel()
	group := NewSelect()
	channel := New[int]()
	receiver := channel.AddReceiver(ringbuffer.Unbounded())
	index, _ := group.Add(receiver)

	receiver.Close()
	if group.State(index) != SlotRemoved || group.Active() != 0 {
		t.Errorf("after receiver Close: state %v, active %d", group.State(index), group.Active())
	}
	if _, err := group.Add(receiver); !errors.Is(err, ErrClosed) {
		t.Errorf("Add closed receiver: got %v, want ErrClosed", err)
	}
}

func TestSelectEmpty(t *testing.T) {
	t.Parallel()
	group := NewSelect()
	if _, err := group.Ready(); !errors.Is(err, ErrNoMembers) {
		t.Errorf("Ready: got %v, want ErrNoMembers", err)
	}
	if _, err := group.TryReady(); !errors.Is(err, ErrNoMembers) {
		t.Errorf("TryReady: got %v, want ErrNoMembers", err)
	}
}

func TestSelectReadyBlocks(t *testing.T) {
	t.Parallel()
	group := NewSelect()
	channel := New[int]()
	index, _ := group.Add(channel.AddReceiver(ringbuffer.Unbounded()))
	sender := channel.AddSender()

	results := make(chan int, 1)
	go func() {
		got, err := group.Ready()
		if err != nil {
			t.Errorf("Ready: %v", err)
		}
		results <- got
	}()

	sender.Send(1)
	if got := testutil.RequireReceive(t, results, 5*time.Second, "blocked Ready"); got != index {
		t.Errorf("got %d, want %d", got, index)
	}
}

func TestSelectCloseWakesWaiter(t *testing.T) {
	t.Parallel()
	group := NewSelect()
	channel := New[int]()
	channel.AddSender()
	group.Add(channel.AddReceiver(ringbuffer.Unbounded()))

	errs := make(chan error, 1)
	go func() {
		_, err := group.Ready()
		errs <- err
	}()

	group.Close()
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "Ready after Close"); !errors.Is(err, ErrNoMembers) {
		t.Errorf("got %v, want ErrNoMembers", err)
	}
}

func TestSelectReadyContext(t *testing.T) {
	t.Parallel()
	group := NewSelect()
	channel := New[int]()
	channel.AddSender()
	group.Add(channel.AddReceiver(ringbuffer.Unbounded()))

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := group.ReadyContext(ctx)
		errs <- err
	}()

	cancel()
	if err := testutil.RequireReceive(t, errs, 5*time.Second, "ReadyContext after cancel"); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

// selectTally is what a single waiter observed while draining a group.
type selectTally struct {
	received   [][]int // per member, values in arrival order
	closedSeen []int
	emptyOpen  int
	err        error
}

func TestSelectUnderConcurrentWriters(t *testing.T) {
	t.Parallel()
	const (
		members   = 4
		writers   = 3
		perWriter = 500
	)
	group := NewSelect(seeded())
	var receivers []*Receiver[int]
	var senders [][]*Sender[int]
	for range members {
		channel := New[int]()
		receiver := channel.AddReceiver(ringbuffer.Unbounded())
		if _, err := group.Add(receiver); err != nil {
			t.Fatalf("Add: %v", err)
		}
		receivers = append(receivers, receiver)
		// Every sender exists before any writer starts, so a channel
		// closes only once all of its writers are done.
		var handles []*Sender[int]
		for range writers {
			handles = append(handles, channel.AddSender())
		}
		senders = append(senders, handles)
	}

	done := make(chan selectTally, 1)
	go func() {
		tally := selectTally{received: make([][]int, members), closedSeen: make([]int, members)}
		acknowledged := 0
		for acknowledged < members {
			index, err := group.Ready()
			if err != nil {
				tally.err = err
				break
			}
			value, err := receivers[index].TryRecv()
			switch {
			case err == nil:
				tally.received[index] = append(tally.received[index], value)
			case errors.Is(err, ErrClosed):
				tally.closedSeen[index]++
				if tally.closedSeen[index] == 1 {
					acknowledged++
				}
			case errors.Is(err, ErrEmpty):
				if group.State(index) == SlotOpen {
					tally.emptyOpen++
				}
			default:
				tally.err = err
			}
		}
		done <- tally
	}()

	for member := range members {
		for writer, sender := range senders[member] {
			go func() {
				for sequence := range perWriter {
					sender.Send(writer*perWriter + sequence)
				}
				sender.Close()
			}()
		}
	}

	tally := testutil.RequireReceive(t, done, 10*time.Second, "draining select under concurrent writers")
	if tally.err != nil {
		t.Fatalf("waiter: %v", tally.err)
	}
	if tally.emptyOpen != 0 {
		t.Errorf("Ready reported an empty open slot %d times", tally.emptyOpen)
	}
	for member := range members {
		if tally.closedSeen[member] != 1 {
			t.Errorf("member %d saw ErrClosed %d times", member, tally.closedSeen[member])
		}
		if got := len(tally.received[member]); got != writers*perWriter {
			t.Errorf("member %d received %d values, want %d", member, got, writers*perWriter)
		}
		// Each writer's values arrive once and in order.
		next := make([]int, writers)
		for _, value := range tally.received[member] {
			writer, sequence := value/perWriter, value%perWriter
			if sequence != next[writer] {
				t.Fatalf("member %d writer %d: got sequence %d, want %d", member, writer, sequence, next[writer])
			}
			next[writer]++
		}
	}

	// Acknowledged slots stay quiet until removed.
	if index, err := group.TryReady(); !errors.Is(err, ErrEmpty) {
		t.Errorf("TryReady after draining = %d, %v; want ErrEmpty", index, err)
	}
	for index := range members {
		if state := group.State(index); state != SlotAcknowledged {
			t.Errorf("slot %d state %v, want acknowledged", index, state)
		}
		if err := group.Remove(index); err != nil {
			t.Errorf("Remove(%d): %v", index, err)
		}
	}
	if active := group.Active(); active != 0 {
		t.Errorf("Active() = %d after removing every member", active)
	}
}

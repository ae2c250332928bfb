// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/ringbuffer"
	"github.com/crater-avionics/crater/lib/telemetry"
)

func newManager(t *testing.T, configs map[string]Config) *Manager {
	t.Helper()
	service, err := telemetry.NewService()
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	manager, err := NewManager(ManagerConfig{Telemetry: service, Configs: configs, Seed: 1})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager
}

// senderNode publishes 0, 1, 2, ... one value per step.
type senderNode struct {
	out  *telemetry.Sender[int]
	next int
}

func (n *senderNode) Step(_ uint64, _ time.Duration, c clock.Clock) (StepResult, error) {
	if err := n.out.SendNow(c, n.next); err != nil {
		return Continue, err
	}
	n.next++
	return Continue, nil
}

// receiverNode records every value available at each step.
type receiverNode struct {
	in   *telemetry.Receiver[int]
	seen []int
}

func (n *receiverNode) Step(uint64, time.Duration, clock.Clock) (StepResult, error) {
	for {
		sample, err := n.in.TryRecv()
		if errors.Is(err, telemetry.ErrEmpty) {
			return Continue, nil
		}
		if err != nil {
			return Continue, err
		}
		n.seen = append(n.seen, sample.Value)
	}
}

func TestTwoNodeScenario(t *testing.T) {
	t.Parallel()
	manager := newManager(t, map[string]Config{
		"node_s": {Outputs: map[string]string{"out": "/a/b/c"}},
		"node_r": {Inputs: map[string]string{"in": "/a/b/c"}},
	})

	if err := manager.AddNode("node_s", func(ctx *Context) (Node, error) {
		out, err := Publish[int](ctx, "out")
		if err != nil {
			return nil, err
		}
		return &senderNode{out: out}, nil
	}); err != nil {
		t.Fatalf("AddNode node_s: %v", err)
	}
	receiver := &receiverNode{}
	if err := manager.AddNode("node_r", func(ctx *Context) (Node, error) {
		in, err := Subscribe[int](ctx, "in", ringbuffer.Unbounded())
		if err != nil {
			return nil, err
		}
		receiver.in = in
		return receiver, nil
	}); err != nil {
		t.Fatalf("AddNode node_r: %v", err)
	}

	c := clock.NewSimulated(time.Time{})
	for tick := range uint64(2) {
		c.Advance(10 * time.Millisecond)
		for _, named := range manager.Nodes() {
			if _, err := named.Node.Step(tick, 10*time.Millisecond, c); err != nil {
				t.Fatalf("step %s: %v", named.Name, err)
			}
		}
	}

	if !slices.Equal(receiver.seen, []int{0, 1}) {
		t.Errorf("node_r observed %v, want [0 1]", receiver.seen)
	}
	if receiver.in.Name() != "/a/b/c" {
		t.Errorf("receiver wired to %q", receiver.in.Name())
	}
}

func TestUnmappedNameIsLiteralPath(t *testing.T) {
	t.Parallel()
	manager := newManager(t, map[string]Config{"n": {}})

	err := manager.AddNode("n", func(ctx *Context) (Node, error) {
		out, err := Publish[int](ctx, "/literal/path")
		if err != nil {
			return nil, err
		}
		if out.Name() != "/literal/path" {
			t.Errorf("Name: got %q", out.Name())
		}
		if _, err := Publish[int](ctx, "not_a_path"); !errors.Is(err, telemetry.ErrInvalidChannelName) {
			t.Errorf("unmapped relative name: got %v, want ErrInvalidChannelName", err)
		}
		return StepFunc(func(uint64, time.Duration, clock.Clock) (StepResult, error) { return Continue, nil }), nil
	})
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
}

func TestAddNodeErrors(t *testing.T) {
	t.Parallel()
	manager := newManager(t, map[string]Config{"a": {}})
	noop := func(*Context) (Node, error) {
		return StepFunc(func(uint64, time.Duration, clock.Clock) (StepResult, error) { return Continue, nil }), nil
	}

	if err := manager.AddNode("missing", noop); !errors.Is(err, ErrMissingConfig) {
		t.Errorf("missing config: got %v, want ErrMissingConfig", err)
	}
	if err := manager.AddNode("a", noop); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := manager.AddNode("a", noop); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("duplicate: got %v, want ErrDuplicateNode", err)
	}
	if manager.Len() != 1 {
		t.Errorf("Len: got %d, want 1", manager.Len())
	}
}

func TestConstructorFailureReleasesHandles(t *testing.T) {
	t.Parallel()
	manager := newManager(t, map[string]Config{"bad": {}, "good": {}})
	boom := errors.New("boom")

	err := manager.AddNode("bad", func(ctx *Context) (Node, error) {
		if _, err := Publish[int](ctx, "/shared"); err != nil {
			return nil, err
		}
		return nil, boom
	})
	var construction *ConstructionError
	if !errors.As(err, &construction) || construction.Node != "bad" || !errors.Is(err, boom) {
		t.Fatalf("got %v, want ConstructionError wrapping boom", err)
	}

	// The failed node's single-producer claim was released.
	err = manager.AddNode("good", func(ctx *Context) (Node, error) {
		if _, err := Publish[int](ctx, "/shared"); err != nil {
			return nil, err
		}
		return StepFunc(func(uint64, time.Duration, clock.Clock) (StepResult, error) { return Continue, nil }), nil
	})
	if err != nil {
		t.Errorf("AddNode good: %v", err)
	}
}

type closingNode struct {
	name  string
	order *[]string
}

func (n *closingNode) Step(uint64, time.Duration, clock.Clock) (StepResult, error) {
	return Continue, nil
}

func (n *closingNode) Close() error {
	*n.order = append(*n.order, n.name)
	if n.name == "second" {
		return errors.New("second failed")
	}
	return nil
}

func TestManagerClose(t *testing.T) {
	t.Parallel()
	manager := newManager(t, map[string]Config{"first": {}, "second": {}})
	var order []string

	external, err := telemetry.Subscribe[int](manager.Telemetry(), "/out", ringbuffer.Unbounded())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	manager.AddNode("first", func(ctx *Context) (Node, error) {
		if _, err := Publish[int](ctx, "/out"); err != nil {
			return nil, err
		}
		return &closingNode{name: "first", order: &order}, nil
	})
	manager.AddNode("second", func(ctx *Context) (Node, error) {
		return &closingNode{name: "second", order: &order}, nil
	})

	err = manager.Close()
	if err == nil || err.Error() != "closing node second: second failed" {
		t.Errorf("Close: got %v", err)
	}
	if !slices.Equal(order, []string{"second", "first"}) {
		t.Errorf("close order: got %v, want [second first]", order)
	}
	// The node's sender was closed, so the external receiver sees the
	// end of the stream.
	if _, err := external.TryRecv(); !errors.Is(err, telemetry.ErrClosed) {
		t.Errorf("external TryRecv: got %v, want ErrClosed", err)
	}
}

func TestNewRandDeterministic(t *testing.T) {
	t.Parallel()
	draw := func() []uint64 {
		manager := newManager(t, map[string]Config{"a": {}, "b": {}})
		var values []uint64
		for _, name := range []string{"a", "b"} {
			manager.AddNode(name, func(ctx *Context) (Node, error) {
				values = append(values, ctx.NewRand().Uint64())
				return StepFunc(func(uint64, time.Duration, clock.Clock) (StepResult, error) { return Continue, nil }), nil
			})
		}
		return values
	}

	first, second := draw(), draw()
	if !slices.Equal(first, second) {
		t.Errorf("same seed gave %v and %v", first, second)
	}
	if first[0] == first[1] {
		t.Error("two nodes received the same generator")
	}
}

func TestContextParamPath(t *testing.T) {
	t.Parallel()
	manager := newManager(t, map[string]Config{"sine": {}})
	manager.AddNode("sine", func(ctx *Context) (Node, error) {
		if got := ctx.Param("amplitude"); got != "/sine/amplitude" {
			t.Errorf("Param: got %q", got)
		}
		if ctx.Name() != "sine" || ctx.Params() == nil || ctx.Logger() == nil {
			t.Error("context accessors not populated")
		}
		return StepFunc(func(uint64, time.Duration, clock.Clock) (StepResult, error) { return Continue, nil }), nil
	})
}

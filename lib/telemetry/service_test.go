// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/ringbuffer"
	"github.com/crater-avionics/crater/lib/ringchannel"
)

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s, err := NewService(opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func stamp(ms int) clock.Timestamp {
	return clock.Timestamp{Monotonic: time.Duration(ms) * time.Millisecond}
}

func TestFanOutThroughService(t *testing.T) {
	t.Parallel()
	s := newService(t)

	first, err := Subscribe[int](s, "/a", ringbuffer.Unbounded())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	second, err := Subscribe[int](s, "/a", ringbuffer.Bounded(1))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sender, err := Publish[int](s, "/a")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if err := sender.Send(stamp(5), 11); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for _, receiver := range []*Receiver[int]{first, second} {
		sample, err := receiver.TryRecv()
		if err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		if sample.Value != 11 || sample.Timestamp != stamp(5) {
			t.Errorf("got %+v", sample)
		}
	}
}

func TestSingleProducerDiscipline(t *testing.T) {
	t.Parallel()
	s := newService(t)

	first, err := Publish[int](s, "/a")
	if err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	if _, err := Publish[int](s, "/a"); !errors.Is(err, ErrAlreadyHasProducer) {
		t.Fatalf("second Publish: got %v, want ErrAlreadyHasProducer", err)
	}

	first.Close()
	again, err := Publish[int](s, "/a")
	if err != nil {
		t.Fatalf("Publish after Close: %v", err)
	}
	if again.Name() != "/a" {
		t.Errorf("Name: got %q", again.Name())
	}
}

func TestMultiProducerDiscipline(t *testing.T) {
	t.Parallel()
	s := newService(t)
	receiver, _ := SubscribeMP[string](s, "/log", ringbuffer.Unbounded())

	var senders []*Sender[string]
	for range 3 {
		sender, err := PublishMP[string](s, "/log")
		if err != nil {
			t.Fatalf("PublishMP: %v", err)
		}
		senders = append(senders, sender)
	}
	for i, sender := range senders {
		sender.Send(stamp(i), strings.Repeat("x", i+1))
	}

	var got []string
	for {
		sample, err := receiver.TryRecv()
		if errors.Is(err, ErrEmpty) {
			break
		}
		if err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		got = append(got, sample.Value)
	}
	if !slices.Equal(got, []string{"x", "xx", "xxx"}) {
		t.Errorf("got %v", got)
	}
}

func TestWrongChannelDataType(t *testing.T) {
	t.Parallel()
	s := newService(t)
	if _, err := Publish[float32](s, "/x"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	_, err := Subscribe[float64](s, "/x", ringbuffer.Unbounded())
	var mismatch *WrongChannelDataTypeError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want *WrongChannelDataTypeError", err)
	}
	if mismatch.Requested != "float64" || mismatch.Expected != "float32" || mismatch.Channel != "/x" {
		t.Errorf("got %+v", mismatch)
	}
	if !errors.Is(err, ErrWrongChannelDataType) {
		t.Error("error should match ErrWrongChannelDataType")
	}
}

func TestWrongChannelType(t *testing.T) {
	t.Parallel()
	s := newService(t)
	PublishMP[int](s, "/m")

	_, err := Subscribe[int](s, "/m", ringbuffer.Unbounded())
	var mismatch *WrongChannelTypeError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want *WrongChannelTypeError", err)
	}
	if mismatch.Requested != SingleProducer || mismatch.Expected != MultiProducer {
		t.Errorf("got %+v", mismatch)
	}
	if _, err := Publish[int](s, "/m"); !errors.Is(err, ErrWrongChannelType) {
		t.Errorf("Publish: got %v, want ErrWrongChannelType", err)
	}
}

func TestInvalidChannelName(t *testing.T) {
	t.Parallel()
	s := newService(t)
	for _, name := range []string{"a/b", "/a b", "/"} {
		if _, err := Publish[int](s, name); !errors.Is(err, ErrInvalidChannelName) {
			t.Errorf("Publish(%q): got %v, want ErrInvalidChannelName", name, err)
		}
	}
}

func TestNamesAreNormalized(t *testing.T) {
	t.Parallel()
	s := newService(t)
	receiver, _ := Subscribe[int](s, "//a//b/", ringbuffer.Unbounded())
	sender, err := Publish[int](s, "/a/b")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	sender.Send(stamp(0), 1)
	if _, err := receiver.TryRecv(); err != nil {
		t.Errorf("TryRecv: %v", err)
	}
}

func TestRemapAppliesToBothSides(t *testing.T) {
	t.Parallel()
	s := newService(t, WithRemap(map[string]string{
		"/sensors/imu": "/hil/imu",
	}))

	receiver, err := Subscribe[int](s, "/sensors/imu", ringbuffer.Unbounded())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if receiver.Name() != "/hil/imu" {
		t.Errorf("receiver Name: got %q", receiver.Name())
	}
	direct, _ := Subscribe[int](s, "/hil/imu", ringbuffer.Unbounded())

	sender, _ := Publish[int](s, "/sensors/imu")
	sender.Send(stamp(0), 3)
	for _, r := range []*Receiver[int]{receiver, direct} {
		if sample, err := r.TryRecv(); err != nil || sample.Value != 3 {
			t.Errorf("%s: got %+v, %v", r.Name(), sample, err)
		}
	}
	if names := s.Match([]string{"*"}); !slices.Equal(names, []string{"/hil/imu"}) {
		t.Errorf("registered channels: %v", names)
	}
}

func TestRemapRejectsInvalidPaths(t *testing.T) {
	t.Parallel()
	if _, err := NewService(WithRemap(map[string]string{"/a": "bad"})); err == nil {
		t.Error("invalid remap target should fail")
	}
}

func TestCloseAndDrainThroughService(t *testing.T) {
	t.Parallel()
	s := newService(t)
	receiver, _ := Subscribe[int](s, "/a", ringbuffer.Unbounded())
	sender, _ := Publish[int](s, "/a")
	sender.Send(stamp(1), 1)
	sender.Send(stamp(2), 2)
	sender.Close()

	for _, want := range []int{1, 2} {
		sample, err := receiver.Recv()
		if err != nil || sample.Value != want {
			t.Fatalf("Recv: got %+v, %v; want %d", sample, err, want)
		}
	}
	if _, err := receiver.Recv(); !errors.Is(err, ErrClosed) {
		t.Errorf("third Recv: got %v, want ErrClosed", err)
	}
}

func TestSubscribeAnyWithSelect(t *testing.T) {
	t.Parallel()
	s := newService(t)
	ints, _ := Publish[int](s, "/ints")
	words, _ := Publish[string](s, "/words")

	if _, err := s.SubscribeAny("/missing", ringbuffer.Unbounded()); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("SubscribeAny missing: got %v, want ErrUnknownChannel", err)
	}

	group := ringchannel.NewSelect()
	receivers := map[int]*AnyReceiver{}
	for _, name := range []string{"/ints", "/words"} {
		receiver, err := s.SubscribeAny(name, ringbuffer.Unbounded())
		if err != nil {
			t.Fatalf("SubscribeAny(%s): %v", name, err)
		}
		index, err := group.Add(receiver)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		receivers[index] = receiver
	}

	ints.Send(stamp(1), 7)
	words.Send(stamp(2), "seven")

	got := map[string]any{}
	for range 2 {
		index, err := group.Ready()
		if err != nil {
			t.Fatalf("Ready: %v", err)
		}
		sample, err := receivers[index].TryRecv()
		if err != nil {
			t.Fatalf("TryRecv: %v", err)
		}
		got[receivers[index].Name()] = sample.Value
	}
	if got["/ints"] != 7 || got["/words"] != "seven" {
		t.Errorf("got %v", got)
	}
	if receivers[0].Type().String() != "int" {
		t.Errorf("Type: got %v", receivers[0].Type())
	}
}

func TestChannelsAndMatch(t *testing.T) {
	t.Parallel()
	s := newService(t)
	Publish[float64](s, "/rocket/altitude")
	PublishMP[string](s, "/rocket/events")
	Subscribe[int](s, "/ground/link", ringbuffer.Bounded(1))

	infos := s.Channels()
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	if !slices.Equal(names, []string{"/ground/link", "/rocket/altitude", "/rocket/events"}) {
		t.Fatalf("Channels: got %v", names)
	}
	if infos[1].Type != "float64" || infos[1].Senders != 1 || infos[1].Discipline != SingleProducer {
		t.Errorf("altitude info: %+v", infos[1])
	}
	if infos[2].Discipline != MultiProducer {
		t.Errorf("events discipline: %v", infos[2].Discipline)
	}

	if got := s.Match([]string{"/rocket/*"}); !slices.Equal(got, []string{"/rocket/altitude", "/rocket/events"}) {
		t.Errorf("Match: got %v", got)
	}
}

func TestOverflowWarningIsThrottled(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	s := newService(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	receiver, _ := Subscribe[int](s, "/fast", ringbuffer.Bounded(1))
	sender, _ := Publish[int](s, "/fast")

	for i := range 251 {
		sender.Send(stamp(i), i)
	}
	if receiver.Dropped() != 250 {
		t.Errorf("Dropped: got %d, want 250", receiver.Dropped())
	}
	// Drops 1, 100, and 200 are logged.
	if got := strings.Count(logs.String(), "receiver overflow"); got != 3 {
		t.Errorf("warnings: got %d, want 3\n%s", got, logs.String())
	}
}

func TestCollector(t *testing.T) {
	t.Parallel()
	s := newService(t)
	Subscribe[int](s, "/a", ringbuffer.Bounded(1))
	sender, _ := Publish[int](s, "/a")
	sender.Send(stamp(0), 1)
	sender.Send(stamp(1), 2)

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(s))
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[family.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[family.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	want := map[string]float64{
		"crater_telemetry_sent_total":    2,
		"crater_telemetry_dropped_total": 1,
		"crater_telemetry_senders":       1,
		"crater_telemetry_receivers":     1,
		"crater_telemetry_closed":        0,
	}
	for name, value := range want {
		if values[name] != value {
			t.Errorf("%s: got %v, want %v", name, values[name], value)
		}
	}
}

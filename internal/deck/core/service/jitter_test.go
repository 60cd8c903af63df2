package service

import (
	"context"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
)

func TestJitterStaysInBounds(t *testing.T) {
	starts := []model.Vitals{
		model.InitialVitals(),
		{CPU: 5, Memory: 20},
		{CPU: 95, Memory: 90},
		{CPU: 99, Memory: 70},
	}

	for _, start := range starts {
		store := state.NewStore()
		store.SetVitals(func(model.Vitals) model.Vitals { return start })
		j := NewJitter(store, clocktesting.NewFakeClock(epoch), 2*time.Second, 42)

		prev := store.Vitals()
		for i := 0; i < 5000; i++ {
			v := j.Tick()
			if !model.CPUBounds.Contains(v.CPU) || !model.MemoryBounds.Contains(v.Memory) {
				t.Fatalf("tick %d from %+v left bounds: %+v", i, start, v)
			}
			if i > 0 && (abs(v.CPU-prev.CPU) > cpuStep || abs(v.Memory-prev.Memory) > memoryStep) {
				t.Fatalf("tick %d moved too far: %+v -> %+v", i, prev, v)
			}
			prev = v
		}
	}
}

func TestJitterSeeded(t *testing.T) {
	run := func() []model.Vitals {
		store := state.NewStore()
		j := NewJitter(store, clocktesting.NewFakeClock(epoch), time.Second, 7)
		out := make([]model.Vitals, 0, 10)
		for i := 0; i < 10; i++ {
			out = append(out, j.Tick())
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tick %d differs for the same seed: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestJitterRun(t *testing.T) {
	fc := clocktesting.NewFakeClock(epoch)
	store := state.NewStore()
	events, unsubscribe := store.Subscribe()
	defer unsubscribe()

	j := NewJitter(store, fc, 2*time.Second, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	for !fc.HasWaiters() {
		time.Sleep(time.Millisecond)
	}
	fc.Step(2 * time.Second)

	select {
	case ev := <-events:
		if ev.Kind != model.EventVitals {
			t.Errorf("event kind = %s, want vitals", ev.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no vitals event after one period")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestClockPacer(t *testing.T) {
	fc := clocktesting.NewFakeClock(epoch)
	p := &ClockPacer{Clock: fc, Scale: 0.5}

	done := make(chan error, 1)
	go func() { done <- p.Pause(context.Background(), 2*time.Second) }()

	for !fc.HasWaiters() {
		time.Sleep(time.Millisecond)
	}
	fc.Step(999 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("pause ended before the scaled delay")
	case <-time.After(10 * time.Millisecond):
	}
	fc.Step(time.Millisecond)
	if err := <-done; err != nil {
		t.Errorf("Pause() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (&ClockPacer{Clock: fc, Scale: 1}).Pause(ctx, time.Hour); err == nil {
		t.Error("canceled pause returned nil")
	}
	if err := (&ClockPacer{Clock: fc, Scale: 0}).Pause(context.Background(), time.Hour); err != nil {
		t.Errorf("instant pause error = %v", err)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

package service

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Pacer suspends a sequence between steps. A pause ends early only when
// ctx is canceled.
type Pacer interface {
	Pause(ctx context.Context, d time.Duration) error
}

// ClockPacer pauses on a clock, scaling every delay by Scale.
type ClockPacer struct {
	Clock clock.Clock
	Scale float64
}

// NewClockPacer returns a ClockPacer on the real clock.
func NewClockPacer(scale float64) *ClockPacer {
	return &ClockPacer{Clock: clock.RealClock{}, Scale: scale}
}

func (p *ClockPacer) Pause(ctx context.Context, d time.Duration) error {
	d = time.Duration(float64(d) * p.Scale)
	if d <= 0 {
		return ctx.Err()
	}

	t := p.Clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

// InstantPacer never sleeps and remembers every requested pause.
type InstantPacer struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (p *InstantPacer) Pause(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.pauses = append(p.pauses, d)
	p.mu.Unlock()
	return ctx.Err()
}

// Pauses returns the requested pauses in order.
func (p *InstantPacer) Pauses() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.pauses...)
}

// Total is the sum of every requested pause.
func (p *InstantPacer) Total() time.Duration {
	var sum time.Duration
	for _, d := range p.Pauses() {
		sum += d
	}
	return sum
}

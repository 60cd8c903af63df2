package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/pkg/log"
)

const (
	cpuStep    = 2.0
	memoryStep = 1.0
)

// Jitter applies a bounded random walk to cpu and memory.
type Jitter struct {
	store  *state.Store
	clock  clock.WithTicker
	period time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewJitter creates a Jitter. A zero seed seeds from the clock.
func NewJitter(store *state.Store, c clock.WithTicker, period time.Duration, seed int64) *Jitter {
	if seed == 0 {
		seed = c.Now().UnixNano()
	}
	return &Jitter{
		store:  store,
		clock:  c,
		period: period,
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// Tick perturbs the vitals once: cpu by up to ±2 within [5,95] and memory
// by up to ±1 within [20,90].
func (j *Jitter) Tick() model.Vitals {
	j.mu.Lock()
	dc := (j.rnd.Float64()*2 - 1) * cpuStep
	dm := (j.rnd.Float64()*2 - 1) * memoryStep
	j.mu.Unlock()

	return j.store.SetVitals(func(v model.Vitals) model.Vitals {
		v.CPU = model.CPUBounds.Clamp(v.CPU + dc)
		v.Memory = model.MemoryBounds.Clamp(v.Memory + dm)
		return v
	})
}

// Run ticks every period until ctx is canceled.
func (j *Jitter) Run(ctx context.Context) error {
	ticker := j.clock.NewTicker(j.period)
	defer ticker.Stop()

	log.Debug("Vitals jitter started", "period", j.period)
	for {
		select {
		case <-ctx.Done():
			log.Debug("Vitals jitter stopped")
			return nil
		case <-ticker.C():
			j.Tick()
		}
	}
}

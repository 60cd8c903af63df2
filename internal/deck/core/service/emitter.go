package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/internal/pkg/metrics"
)

// Emitter appends timestamped lines to the store log.
type Emitter struct {
	store *state.Store
	pacer Pacer
	clock clock.PassiveClock
}

// NewEmitter creates an Emitter.
func NewEmitter(store *state.Store, pacer Pacer, c clock.PassiveClock) *Emitter {
	return &Emitter{store: store, pacer: pacer, clock: c}
}

// Emit waits delay, then appends message. Entries of a sequential caller
// keep issuance order. Nothing is appended if ctx ends during the wait.
func (e *Emitter) Emit(ctx context.Context, message string, typ model.LogType, delay time.Duration) error {
	if delay > 0 {
		if err := e.pacer.Pause(ctx, delay); err != nil {
			return err
		}
	}

	e.store.AppendLog(e.Entry(message, typ))
	return nil
}

// Entry builds a LogEntry stamped with the current wall-clock time.
func (e *Emitter) Entry(message string, typ model.LogType) model.LogEntry {
	metrics.LogEntriesTotal.WithLabelValues(string(typ)).Inc()
	return model.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: e.clock.Now().Format(model.TimestampLayout),
		Message:   message,
		Type:      typ,
	}
}

package service

import (
	"context"
	"errors"
	"sync"

	"k8s.io/utils/clock"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/internal/pkg/metrics"
	"github.com/opsdeck/opsdeck/pkg/log"
)

// ErrEmptyActionName is returned when a generic action has no name.
var ErrEmptyActionName = errors.New("action name must not be empty")

// Service sequences simulated actions against a Store.
type Service struct {
	store   *state.Store
	pacer   Pacer
	clock   clock.PassiveClock
	emitter *Emitter
	logger  log.Logger

	// base bounds sequences started with the Start* methods.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithPacer sets the pacer of every sequence.
func WithPacer(p Pacer) Option {
	return func(s *Service) { s.pacer = p }
}

// WithClock sets the clock used for log timestamps and record times.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the operational logger.
func WithLogger(l log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service on store.
func New(store *state.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		pacer:  NewClockPacer(1),
		clock:  clock.RealClock{},
		logger: log.WithName("sequencer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	s.emitter = NewEmitter(store, s.pacer, s.clock)
	return s
}

// Store returns the backing store.
func (s *Service) Store() *state.Store {
	return s.store
}

// Wait blocks until every background sequence has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown aborts background sequences at their next pause and waits for them.
func (s *Service) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// ExportLogs renders the current log as "[timestamp] message" lines.
func (s *Service) ExportLogs() string {
	return model.ExportLogs(s.store.Logs())
}

// ToggleChaos flips chaos mode. A running deployment is not affected.
func (s *Service) ToggleChaos() model.Flags {
	return s.store.UpdateFlags(func(f model.Flags) model.Flags {
		f.Chaos = !f.Chaos
		return f
	})
}

// ToggleDryRun flips dry-run mode. A running action is not affected.
func (s *Service) ToggleDryRun() model.Flags {
	return s.store.UpdateFlags(func(f model.Flags) model.Flags {
		f.DryRun = !f.DryRun
		return f
	})
}

// SetChaos sets chaos mode.
func (s *Service) SetChaos(enabled bool) model.Flags {
	return s.store.UpdateFlags(func(f model.Flags) model.Flags {
		f.Chaos = enabled
		return f
	})
}

// SetDryRun sets dry-run mode.
func (s *Service) SetDryRun(enabled bool) model.Flags {
	return s.store.UpdateFlags(func(f model.Flags) model.Flags {
		f.DryRun = enabled
		return f
	})
}

// start runs seq in the background once begin has succeeded.
func (s *Service) start(kind string, begin func() (model.Flags, error), seq func(ctx context.Context, flags model.Flags) error) error {
	flags, err := begin()
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := seq(s.base, flags); err != nil {
			s.logger.Error(err, "Sequence aborted", "kind", kind)
		}
	}()
	return nil
}

func (s *Service) rejected(kind string) {
	metrics.RejectedTotal.WithLabelValues(kind).Inc()
	s.logger.Info("Trigger ignored, an action is in flight", "kind", kind)
}

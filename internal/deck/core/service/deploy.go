package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/internal/pkg/metrics"
)

const (
	// SecurityAlert is raised when a chaos deployment rolls back.
	SecurityAlert = "CRITICAL: DEPLOYMENT CORRUPTION DETECTED"

	successDuration  = "3.2s"
	rollbackDuration = "4.8s"

	// settleDelay separates the rollback record from the UNHEALTHY status.
	settleDelay = 1500 * time.Millisecond
)

type step struct {
	message string
	typ     model.LogType
	delay   time.Duration
}

// Deploy runs one simulated deployment to completion. It returns
// state.ErrBusy, changing nothing, if an action is already in flight.
//
// If ctx ends mid-sequence Deploy returns ctx.Err() and the status stays
// DEPLOYING, so the store rejects every later trigger with state.ErrBusy.
// Cancel only when the store is being discarded.
func (s *Service) Deploy(ctx context.Context) error {
	flags, err := s.beginDeployment()
	if err != nil {
		return err
	}
	return s.deploy(ctx, flags)
}

// StartDeployment begins a deployment and runs the rest of it in the
// background. The busy check happens before it returns.
func (s *Service) StartDeployment() error {
	return s.start("deployment", s.beginDeployment, s.deploy)
}

func (s *Service) beginDeployment() (model.Flags, error) {
	var flags model.Flags
	err := s.store.Begin(func(tx *state.Txn) {
		flags = tx.Flags()
		tx.ClearLogs()
		tx.SetAlert("")
		tx.SetVitals(func(v model.Vitals) model.Vitals {
			v.CPU = 55
			return v
		})
	})
	if errors.Is(err, state.ErrBusy) {
		s.rejected("deployment")
	}
	return flags, err
}

func (s *Service) deploy(ctx context.Context, flags model.Flags) error {
	s.logger.Info("Deployment started", "chaos", flags.Chaos)

	opening := []step{
		{"⚡ INITIALIZING ATOMIC DEPLOYMENT", model.LogCommand, 0},
		{"+ BUILD_MANIFEST: " + s.manifest(), model.LogInfo, 300 * time.Millisecond},
		{"→ Creating immutable snapshot of current mount...", model.LogCommand, 500 * time.Millisecond},
	}
	if err := s.run(ctx, opening); err != nil {
		return err
	}
	s.store.SetVitals(func(v model.Vitals) model.Vitals {
		v.Memory = 70
		return v
	})

	if err := s.emitter.Emit(ctx, "→ Running automated integrity checks...", model.LogInfo, 700*time.Millisecond); err != nil {
		return err
	}

	if flags.Chaos {
		return s.rollback(ctx)
	}

	closing := []step{
		{"✔ Health check: 200 OK", model.LogSuccess, 800 * time.Millisecond},
		{"→ Swapping production traffic to new build...", model.LogCommand, 400 * time.Millisecond},
		{"✓ DEPLOYMENT COMPLETE: System is green.", model.LogSuccess, 400 * time.Millisecond},
	}
	if err := s.run(ctx, closing); err != nil {
		return err
	}

	var rec model.DeploymentRecord
	if _, err := s.store.Fire(state.EventSucceed, func(tx *state.Txn) {
		rec = tx.PrependRecord(s.record(model.RecordSuccess, successDuration))
		tx.SetVitals(func(v model.Vitals) model.Vitals {
			v.CPU, v.Memory = 15, 38
			return v
		})
	}); err != nil {
		return err
	}

	metrics.DeploymentsTotal.WithLabelValues(string(rec.Status)).Inc()
	s.logger.Info("Deployment finished", "version", rec.Version, "status", rec.Status)
	return nil
}

func (s *Service) rollback(ctx context.Context) error {
	if err := s.emitter.Emit(ctx, "⚠️ WARNING: Chaos mode detected. Injecting entropy...", model.LogWarning, 800*time.Millisecond); err != nil {
		return err
	}
	s.store.SetVitals(func(v model.Vitals) model.Vitals {
		v.CPU = 99
		return v
	})

	failing := []step{
		{"✖ ERROR: [PID 1042] Health check failed - SIGABRT", model.LogError, 1000 * time.Millisecond},
		{"↻ RECOVERY: Rolling back symlink to stable snapshot...", model.LogWarning, 500 * time.Millisecond},
	}
	if err := s.run(ctx, failing); err != nil {
		return err
	}

	var rec model.DeploymentRecord
	if _, err := s.store.Fire(state.EventRollback, func(tx *state.Txn) {
		tx.SetAlert(SecurityAlert)
		rec = tx.PrependRecord(s.record(model.RecordRollback, rollbackDuration))
	}); err != nil {
		return err
	}
	metrics.DeploymentsTotal.WithLabelValues(string(rec.Status)).Inc()
	s.logger.Warn("Deployment rolled back", "version", rec.Version)

	if err := s.pacer.Pause(ctx, settleDelay); err != nil {
		return err
	}

	// Skipped when another action took over during the pause.
	settled, err := s.store.Fire(state.EventSettle, func(tx *state.Txn) {
		tx.SetVitals(func(v model.Vitals) model.Vitals {
			v.CPU, v.Memory = 20, 45
			return v
		})
	})
	if err != nil {
		return err
	}
	if !settled {
		s.logger.Info("Rollback settle skipped, status changed", "status", s.store.Status())
	}
	return nil
}

func (s *Service) run(ctx context.Context, steps []step) error {
	for _, st := range steps {
		if err := s.emitter.Emit(ctx, st.message, st.typ, st.delay); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(status model.RecordStatus, duration string) func(prior int) model.DeploymentRecord {
	return func(prior int) model.DeploymentRecord {
		return model.DeploymentRecord{
			ID:        uuid.NewString(),
			Version:   model.VersionFor(prior),
			Timestamp: s.clock.Now(),
			Status:    status,
			Duration:  duration,
		}
	}
}

// manifest is "rel_" followed by the upper-case base36 unix milliseconds.
func (s *Service) manifest() string {
	return "rel_" + strings.ToUpper(strconv.FormatInt(s.clock.Now().UnixMilli(), 36))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/internal/pkg/metrics"
)

// TaskKey upper-cases name and replaces every whitespace character with
// "_". Runs are not collapsed and the ends are not trimmed.
func TaskKey(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, strings.ToUpper(name))
}

// RunAction runs the generic action name to completion. It writes no
// history record. Like Deploy, a canceled ctx leaves the status at
// DEPLOYING and the store busy for good.
func (s *Service) RunAction(ctx context.Context, name string) error {
	flags, err := s.beginAction(name)
	if err != nil {
		return err
	}
	return s.action(ctx, name, flags)
}

// StartAction begins the generic action name and finishes it in the background.
func (s *Service) StartAction(name string) error {
	return s.start("action", func() (model.Flags, error) {
		return s.beginAction(name)
	}, func(ctx context.Context, flags model.Flags) error {
		return s.action(ctx, name, flags)
	})
}

func (s *Service) beginAction(name string) (model.Flags, error) {
	if strings.TrimSpace(name) == "" {
		return model.Flags{}, ErrEmptyActionName
	}

	var flags model.Flags
	err := s.store.Begin(func(tx *state.Txn) {
		flags = tx.Flags()
		tx.ClearLogs()
		tx.AppendLog(s.emitter.Entry("🚀 TASK_TRIGGER: "+TaskKey(name), model.LogCommand))
	})
	if errors.Is(err, state.ErrBusy) {
		s.rejected("action")
	}
	return flags, err
}

func (s *Service) action(ctx context.Context, name string, flags model.Flags) error {
	s.logger.Info("Action started", "name", name, "dryRun", flags.DryRun)

	if flags.DryRun {
		if err := s.emitter.Emit(ctx, "ℹ MODE: DRY_RUN (SIMULATION ONLY)", model.LogWarning, 200*time.Millisecond); err != nil {
			return err
		}
	}

	s.store.SetVitals(func(v model.Vitals) model.Vitals {
		v.CPU = 65
		return v
	})
	if err := s.emitter.Emit(ctx, fmt.Sprintf("Executing %s procedures...", name), model.LogInfo, 700*time.Millisecond); err != nil {
		return err
	}

	s.store.SetVitals(func(v model.Vitals) model.Vitals {
		v.CPU = 15
		return v
	})
	if err := s.emitter.Emit(ctx, fmt.Sprintf("✔ %s process finalized. Status: Success.", name), model.LogSuccess, 400*time.Millisecond); err != nil {
		return err
	}

	if _, err := s.store.Fire(state.EventSucceed, nil); err != nil {
		return err
	}

	metrics.ActionsTotal.WithLabelValues(TaskKey(name), strconv.FormatBool(flags.DryRun)).Inc()
	s.logger.Info("Action finished", "name", name)
	return nil
}

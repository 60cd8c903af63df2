package service

import (
	"context"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
)

// saveDelay is how long "recompiling" a script takes.
const saveDelay = 1200 * time.Millisecond

// OpenEditor opens the script editor on key.
func (s *Service) OpenEditor(key model.ScriptKey) (*model.Editor, error) {
	return s.store.OpenEditor(key)
}

// CloseEditor closes the script editor without saving.
func (s *Service) CloseEditor() {
	s.store.CloseEditor()
}

// Script returns the stored text of key.
func (s *Service) Script(key model.ScriptKey) (string, error) {
	return s.store.Script(key)
}

// SetScript stores text under key. The text is never parsed or executed.
func (s *Service) SetScript(key model.ScriptKey, text string) error {
	return s.store.SetScript(key, text)
}

// SaveEditor applies the open script: the editor shows as saving for a
// while, then closes and a confirmation line is logged.
func (s *Service) SaveEditor(ctx context.Context) error {
	key, err := s.store.BeginSave()
	if err != nil {
		return err
	}
	return s.save(ctx, key)
}

// StartSave begins saving the open script and finishes in the background.
func (s *Service) StartSave() error {
	key, err := s.store.BeginSave()
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.save(s.base, key); err != nil {
			s.logger.Error(err, "Script save aborted", "script", key)
		}
	}()
	return nil
}

func (s *Service) save(ctx context.Context, key model.ScriptKey) error {
	if err := s.pacer.Pause(ctx, saveDelay); err != nil {
		return err
	}

	s.store.FinishSave(func(tx *state.Txn) {
		tx.AppendLog(s.emitter.Entry(fmt.Sprintf("SYSTEM: %s recompiled and applied.", key.FileName()), model.LogSuccess))
	})
	s.logger.Info("Script applied", "script", key)
	return nil
}

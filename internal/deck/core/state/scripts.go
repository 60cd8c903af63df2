package state

import (
	"fmt"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
)

// Script returns the text stored under key.
func (s *Store) Script(key model.ScriptKey) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, ok := s.scripts[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScript, key)
	}
	return text, nil
}

// SetScript replaces the text stored under key. Any text is accepted,
// including the empty string.
func (s *Store) SetScript(key model.ScriptKey, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scripts[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScript, key)
	}
	s.scripts[key] = text
	s.publish(model.EventScript, key)
	if s.editor != nil && s.editor.key == key {
		s.publish(model.EventEditor, s.editorLocked())
	}
	return nil
}

// Editor returns the open editor, or nil.
func (s *Store) Editor() *model.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editorLocked()
}

// OpenEditor opens the editor on key, replacing any editor that is not saving.
func (s *Store) OpenEditor(key model.ScriptKey) (*model.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scripts[key]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScript, key)
	}
	if s.editor != nil && s.editor.saving {
		return nil, ErrBusy
	}

	s.editor = &editorSession{key: key}
	ed := s.editorLocked()
	s.publish(model.EventEditor, ed)
	return ed, nil
}

// CloseEditor closes the editor. Closing a closed editor is a no-op.
func (s *Store) CloseEditor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeEditorLocked()
}

// BeginSave raises the saving flag and returns the key being saved.
func (s *Store) BeginSave() (model.ScriptKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editor == nil {
		return "", ErrEditorClosed
	}
	if s.editor.saving {
		return "", ErrBusy
	}

	s.editor.saving = true
	s.publish(model.EventEditor, s.editorLocked())
	return s.editor.key, nil
}

// FinishSave closes the editor and runs apply under the same lock.
func (s *Store) FinishSave(apply func(tx *Txn)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeEditorLocked()
	if apply != nil {
		apply(&Txn{s: s})
	}
}

func (s *Store) closeEditorLocked() {
	if s.editor == nil {
		return
	}
	s.editor = nil
	s.publish(model.EventEditor, (*model.Editor)(nil))
}

func (s *Store) editorLocked() *model.Editor {
	if s.editor == nil {
		return nil
	}
	return &model.Editor{
		Key:    s.editor.key,
		Title:  s.editor.key.Title(),
		Text:   s.scripts[s.editor.key],
		Saving: s.editor.saving,
	}
}

package state

import "errors"

var (
	// ErrBusy is returned when a trigger arrives while an action is in flight.
	// The store is left untouched.
	ErrBusy = errors.New("an action is already in flight")

	// ErrUnknownScript is returned for a key outside the fixed script set.
	ErrUnknownScript = errors.New("unknown script")

	// ErrEditorClosed is returned when saving without an open editor.
	ErrEditorClosed = errors.New("script editor is not open")
)

package model

import "time"

// EventKind names what changed in the deck state.
type EventKind string

const (
	EventLogAppended EventKind = "log.appended"
	EventLogCleared  EventKind = "log.cleared"
	EventStatus      EventKind = "status"
	EventVitals      EventKind = "vitals"
	EventHistory     EventKind = "history"
	EventAlert       EventKind = "alert"
	EventFlags       EventKind = "flags"
	EventEditor      EventKind = "editor"
	EventScript      EventKind = "script"

	// EventSnapshot opens a stream with the whole state.
	EventSnapshot EventKind = "snapshot"
)

// Event is one state change fanned out to subscribers.
// Data holds the new value: LogEntry, SystemStatus, Vitals,
// DeploymentRecord, string (alert), Flags, *Editor (nil when closed)
// or ScriptKey. It is nil for EventLogCleared.
type Event struct {
	Seq  uint64    `json:"seq"`
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// Flags are the two panel toggles.
type Flags struct {
	Chaos  bool `json:"chaos"`
	DryRun bool `json:"dryRun"`
}

// Snapshot is a consistent copy of the whole deck state.
type Snapshot struct {
	Status  SystemStatus       `json:"status"`
	Logs    []LogEntry         `json:"logs"`
	History []DeploymentRecord `json:"history"`
	Vitals  Vitals             `json:"vitals"`
	Alert   string             `json:"alert,omitempty"`
	Flags   Flags              `json:"flags"`
	Editor  *Editor            `json:"editor,omitempty"`
}

// PanelActions are the generic actions offered by the panel.
func PanelActions() []string {
	return []string{"Log Rotation", "Safe Cleanup", "Automated Backup"}
}

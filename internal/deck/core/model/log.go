package model

import (
	"fmt"
	"strings"
)

// LogType classifies a log line for rendering.
type LogType string

const (
	LogInfo    LogType = "info"
	LogError   LogType = "error"
	LogSuccess LogType = "success"
	LogCommand LogType = "command"
	LogWarning LogType = "warning"
)

// TimestampLayout is the wall-clock format of LogEntry.Timestamp (24h, no date).
const TimestampLayout = "15:04:05"

// LogEntry is one immutable line of the panel log.
type LogEntry struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Message   string  `json:"message"`
	Type      LogType `json:"type"`
}

// Line renders the entry as "[timestamp] message".
func (e LogEntry) Line() string {
	return fmt.Sprintf("[%s] %s", e.Timestamp, e.Message)
}

// ExportLogs renders entries one Line per row, in order, joined by newlines.
// An empty log exports as the empty string.
func ExportLogs(entries []LogEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Line())
	}
	return strings.Join(lines, "\n")
}

package model

import (
	"fmt"
	"time"
)

// RecordStatus is the outcome stored in a DeploymentRecord.
type RecordStatus string

const (
	RecordSuccess  RecordStatus = "success"
	RecordFailure  RecordStatus = "failure"
	RecordRollback RecordStatus = "rollback"
)

// DeploymentRecord is one immutable entry of the history ledger.
type DeploymentRecord struct {
	ID        string       `json:"id"`
	Version   string       `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Status    RecordStatus `json:"status"`
	Duration  string       `json:"duration"`
}

// versionBase offsets the patch number of generated versions.
const versionBase = 100

// VersionFor returns the version label of the deployment recorded after
// prior existing records: v2.0.(100 + prior + 1).
func VersionFor(prior int) string {
	return fmt.Sprintf("v2.0.%d", versionBase+prior+1)
}

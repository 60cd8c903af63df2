package model

import "fmt"

// ScriptKey names one of the editable policy scripts.
type ScriptKey string

const (
	ScriptDeployment  ScriptKey = "deployment"
	ScriptLogRotation ScriptKey = "logRotation"
	ScriptCleanup     ScriptKey = "cleanup"
	ScriptBackup      ScriptKey = "backup"
)

// ScriptKeys lists the fixed key set.
func ScriptKeys() []ScriptKey {
	return []ScriptKey{ScriptDeployment, ScriptLogRotation, ScriptCleanup, ScriptBackup}
}

var scriptTitles = map[ScriptKey]string{
	ScriptDeployment:  "Modify: Deployment Pipeline",
	ScriptLogRotation: "Modify: Log Rotation Logic",
	ScriptCleanup:     "Modify: Purge Criteria",
	ScriptBackup:      "Modify: Backup Strategy",
}

// ParseScriptKey validates s against the fixed key set.
func ParseScriptKey(s string) (ScriptKey, error) {
	k := ScriptKey(s)
	if _, ok := scriptTitles[k]; !ok {
		return "", fmt.Errorf("unknown script %q", s)
	}
	return k, nil
}

// Title is the editor heading for k.
func (k ScriptKey) Title() string {
	return scriptTitles[k]
}

// FileName is the name used in log lines, e.g. "backup.sh".
func (k ScriptKey) FileName() string {
	return string(k) + ".sh"
}

// Editor describes the open script editor.
type Editor struct {
	Key    ScriptKey `json:"key"`
	Title  string    `json:"title"`
	Text   string    `json:"text"`
	Saving bool      `json:"saving"`
}

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/pkg/log"
)

// Command is a control message received on {root}/control/{deckID}.
type Command struct {
	// Command is one of deploy, action, chaos, dry-run, open-editor, close-editor, save-editor.
	Command string `json:"command"`

	// Name is the generic action name for "action".
	Name string `json:"name,omitempty"`

	// Enabled sets a flag for "chaos" and "dry-run". Absent means toggle.
	Enabled *bool `json:"enabled,omitempty"`

	// Script is the key for "open-editor".
	Script string `json:"script,omitempty"`
}

func (s *Server) handleCommand(ctx context.Context, payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	log.Info("Received control command", "command", cmd.Command)

	switch cmd.Command {
	case "deploy":
		return s.svc.StartDeployment()
	case "action":
		return s.svc.StartAction(cmd.Name)
	case "chaos":
		if cmd.Enabled == nil {
			s.svc.ToggleChaos()
		} else {
			s.svc.SetChaos(*cmd.Enabled)
		}
	case "dry-run":
		if cmd.Enabled == nil {
			s.svc.ToggleDryRun()
		} else {
			s.svc.SetDryRun(*cmd.Enabled)
		}
	case "open-editor":
		_, err := s.svc.OpenEditor(model.ScriptKey(cmd.Script))
		return err
	case "close-editor":
		s.svc.CloseEditor()
	case "save-editor":
		return s.svc.StartSave()
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
	return nil
}

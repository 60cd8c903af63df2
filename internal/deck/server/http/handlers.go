package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/service"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/pkg/log"
)

// maxBody bounds request bodies; scripts are the largest payload.
const maxBody = 1 << 20

type actionRequest struct {
	Name string `json:"name"`
}

type flagRequest struct {
	Enabled bool `json:"enabled"`
}

type scriptBody struct {
	Key   model.ScriptKey `json:"key"`
	Title string          `json:"title,omitempty"`
	Text  string          `json:"text"`
}

type accepted struct {
	Status model.SystemStatus `json:"status"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for _, check := range s.checks {
		if err := check(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Store().Snapshot())
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.StartDeployment(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted{Status: model.StatusDeploying})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Store().History())
}

func (s *Server) handleRunAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.StartAction(req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted{Status: model.StatusDeploying})
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.PanelActions())
}

func (s *Server) handleGetFlags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Store().Flags())
}

func (s *Server) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	switch mux.Vars(r)["flag"] {
	case "chaos":
		writeJSON(w, http.StatusOK, s.svc.SetChaos(req.Enabled))
	case "dry-run":
		writeJSON(w, http.StatusOK, s.svc.SetDryRun(req.Enabled))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleToggleFlag(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["flag"] {
	case "chaos":
		writeJSON(w, http.StatusOK, s.svc.ToggleChaos())
	case "dry-run":
		writeJSON(w, http.StatusOK, s.svc.ToggleDryRun())
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs := s.svc.Store().Logs()
	if logs == nil {
		logs = []model.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="opsdeck.log"`)
	_, _ = io.WriteString(w, s.svc.ExportLogs())
}

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	out := make([]scriptBody, 0, len(model.ScriptKeys()))
	for _, key := range model.ScriptKeys() {
		text, err := s.svc.Script(key)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, scriptBody{Key: key, Title: key.Title(), Text: text})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	key := model.ScriptKey(mux.Vars(r)["key"])
	text, err := s.svc.Script(key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scriptBody{Key: key, Title: key.Title(), Text: text})
}

func (s *Server) handlePutScript(w http.ResponseWriter, r *http.Request) {
	var body scriptBody
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}

	key := model.ScriptKey(mux.Vars(r)["key"])
	if err := s.svc.SetScript(key, body.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scriptBody{Key: key, Title: key.Title(), Text: body.Text})
}

func (s *Server) handleGetEditor(w http.ResponseWriter, r *http.Request) {
	ed := s.svc.Store().Editor()
	if ed == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ed)
}

func (s *Server) handleOpenEditor(w http.ResponseWriter, r *http.Request) {
	ed, err := s.svc.OpenEditor(model.ScriptKey(mux.Vars(r)["key"]))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ed)
}

func (s *Server) handleCloseEditor(w http.ResponseWriter, r *http.Request) {
	s.svc.CloseEditor()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveEditor(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.StartSave(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.svc.Store().Editor())
}

var errBadRequest = errors.New("malformed request body")

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to encode response")
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, state.ErrBusy), errors.Is(err, state.ErrEditorClosed):
		code = http.StatusConflict
	case errors.Is(err, state.ErrUnknownScript):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrEmptyActionName), errors.Is(err, errBadRequest):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		log.Error(err, "Request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

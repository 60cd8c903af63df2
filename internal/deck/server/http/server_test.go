package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/service"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/pkg/log"
	"github.com/opsdeck/opsdeck/pkg/options"
)

func newTestServer(t *testing.T, pacer service.Pacer, checks ...ReadyCheck) (*Server, *httptest.Server) {
	t.Helper()
	svc := service.New(state.NewStore(), service.WithPacer(pacer), service.WithLogger(log.NewNopLogger()))
	srv := NewServer(options.NewHttpOptions(), svc, checks...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		svc.Wait()
	})
	return srv, ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

// blockingPacer holds every sequence until the test ends.
type blockingPacer struct{ release chan struct{} }

func (p blockingPacer) Pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.release:
		return nil
	}
}

func TestRoutes(t *testing.T) {
	_, ts := newTestServer(t, &service.InstantPacer{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"healthz", http.MethodGet, "/healthz", "", http.StatusOK},
		{"readyz", http.MethodGet, "/readyz", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"state", http.MethodGet, "/api/v1/state", "", http.StatusOK},
		{"history", http.MethodGet, "/api/v1/deployments", "", http.StatusOK},
		{"actions", http.MethodGet, "/api/v1/actions", "", http.StatusOK},
		{"empty action", http.MethodPost, "/api/v1/actions", `{"name":" "}`, http.StatusBadRequest},
		{"malformed action", http.MethodPost, "/api/v1/actions", `{`, http.StatusBadRequest},
		{"flags", http.MethodGet, "/api/v1/flags", "", http.StatusOK},
		{"unknown flag", http.MethodPut, "/api/v1/flags/turbo", `{"enabled":true}`, http.StatusNotFound},
		{"unknown toggle", http.MethodPost, "/api/v1/flags/turbo/toggle", "", http.StatusNotFound},
		{"logs", http.MethodGet, "/api/v1/logs", "", http.StatusOK},
		{"export", http.MethodGet, "/api/v1/logs/export", "", http.StatusOK},
		{"scripts", http.MethodGet, "/api/v1/scripts", "", http.StatusOK},
		{"script", http.MethodGet, "/api/v1/scripts/cleanup", "", http.StatusOK},
		{"unknown script", http.MethodGet, "/api/v1/scripts/firewall", "", http.StatusNotFound},
		{"closed editor", http.MethodGet, "/api/v1/editor", "", http.StatusNoContent},
		{"save closed editor", http.MethodPost, "/api/v1/editor/save", "", http.StatusConflict},
		{"close editor", http.MethodDelete, "/api/v1/editor", "", http.StatusNoContent},
		{"wrong method", http.MethodDelete, "/api/v1/state", "", http.StatusMethodNotAllowed},
		{"wrong method on script", http.MethodPatch, "/api/v1/scripts/cleanup", "", http.StatusMethodNotAllowed},
		{"wrong method on export", http.MethodPost, "/api/v1/logs/export", "", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.code {
				t.Errorf("%s %s = %d, want %d (body %s)", tt.method, tt.path, resp.StatusCode, tt.code, body)
			}
		})
	}
}

func TestReadyzChecks(t *testing.T) {
	_, ts := newTestServer(t, &service.InstantPacer{}, func() error { return errors.New("mqtt not connected") })

	resp, body := do(t, http.MethodGet, ts.URL+"/readyz", "")
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(string(body), "mqtt") {
		t.Errorf("readyz = %d %q", resp.StatusCode, body)
	}
}

func TestDeployConflict(t *testing.T) {
	pacer := blockingPacer{release: make(chan struct{})}
	srv, ts := newTestServer(t, pacer)
	defer close(pacer.release)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/v1/deployments", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first deploy = %d, want 202", resp.StatusCode)
	}

	for _, path := range []string{"/api/v1/deployments", "/api/v1/actions"} {
		resp, body := do(t, http.MethodPost, ts.URL+path, `{"name":"Safe Cleanup"}`)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("POST %s while busy = %d, want 409 (body %s)", path, resp.StatusCode, body)
		}
	}

	if got := srv.svc.Store().Status(); got != model.StatusDeploying {
		t.Errorf("status = %s, want DEPLOYING", got)
	}
}

func TestDeployAndExport(t *testing.T) {
	srv, ts := newTestServer(t, &service.InstantPacer{})

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/v1/deployments", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("deploy = %d", resp.StatusCode)
	}
	srv.svc.Wait()

	resp, body := do(t, http.MethodGet, ts.URL+"/api/v1/deployments", "")
	var history []model.DeploymentRecord
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Version != "v2.0.101" || history[0].Status != model.RecordSuccess {
		t.Errorf("history = %+v", history)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/api/v1/logs/export", "")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if string(body) != srv.svc.ExportLogs() {
		t.Errorf("export body differs from service export")
	}
	if lines := strings.Split(string(body), "\n"); len(lines) != 7 || !strings.HasSuffix(lines[6], "✓ DEPLOYMENT COMPLETE: System is green.") {
		t.Errorf("unexpected export:\n%s", body)
	}
}

func TestFlags(t *testing.T) {
	_, ts := newTestServer(t, &service.InstantPacer{})

	steps := []struct {
		method, path, body string
		want               model.Flags
	}{
		{http.MethodPost, "/api/v1/flags/chaos/toggle", "", model.Flags{Chaos: true}},
		{http.MethodPut, "/api/v1/flags/dry-run", `{"enabled":true}`, model.Flags{Chaos: true, DryRun: true}},
		{http.MethodPut, "/api/v1/flags/chaos", `{"enabled":false}`, model.Flags{DryRun: true}},
		{http.MethodPost, "/api/v1/flags/dry-run/toggle", "", model.Flags{}},
	}

	for _, st := range steps {
		resp, body := do(t, st.method, ts.URL+st.path, st.body)
		var got model.Flags
		if err := json.Unmarshal(body, &got); err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("%s %s = %d %s", st.method, st.path, resp.StatusCode, body)
		}
		if got != st.want {
			t.Errorf("%s %s flags = %+v, want %+v", st.method, st.path, got, st.want)
		}
	}
}

func TestScriptEditor(t *testing.T) {
	srv, ts := newTestServer(t, &service.InstantPacer{})

	resp, body := do(t, http.MethodPost, ts.URL+"/api/v1/editor/logRotation", "")
	var ed model.Editor
	if err := json.Unmarshal(body, &ed); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("open editor = %d %s", resp.StatusCode, body)
	}
	if ed.Title != "Modify: Log Rotation Logic" || ed.Text == "" {
		t.Errorf("editor = %+v", ed)
	}

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/v1/scripts/logRotation", `{"text":""}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put script = %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/v1/editor/save", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("save = %d", resp.StatusCode)
	}
	srv.svc.Wait()

	snap := srv.svc.Store().Snapshot()
	if snap.Editor != nil {
		t.Error("editor still open after save")
	}
	want := []string{"SYSTEM: logRotation.sh recompiled and applied."}
	var got []string
	for _, e := range snap.Logs {
		got = append(got, e.Message)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}

	_, body = do(t, http.MethodGet, ts.URL+"/api/v1/scripts/logRotation", "")
	var script scriptBody
	if err := json.Unmarshal(body, &script); err != nil || script.Text != "" {
		t.Errorf("script = %+v, %v", script, err)
	}
}

func TestStream(t *testing.T) {
	srv, ts := newTestServer(t, &service.InstantPacer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, unsubscribe := srv.svc.Store().Subscribe()
	defer unsubscribe()
	go srv.hub.Run(ctx, events)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + streamPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello struct {
		Kind model.EventKind `json:"kind"`
		Data model.Snapshot  `json:"data"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}
	if hello.Kind != model.EventSnapshot || hello.Data.Status != model.StatusHealthy {
		t.Errorf("first frame = %+v", hello)
	}

	// Registration is asynchronous; keep toggling until an event arrives.
	got := make(chan model.EventKind, 1)
	go func() {
		var ev struct {
			Kind model.EventKind `json:"kind"`
		}
		if err := conn.ReadJSON(&ev); err == nil {
			got <- ev.Kind
		}
		close(got)
	}()

	deadline := time.After(5 * time.Second)
	for {
		srv.svc.ToggleChaos()
		select {
		case kind := <-got:
			if kind != model.EventFlags {
				t.Errorf("event kind = %s, want flags", kind)
			}
			return
		case <-deadline:
			t.Fatal("no stream event received")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/pkg/log"
)

var epoch = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type line struct {
	Message string
	Type    model.LogType
}

func lines(entries []model.LogEntry) []line {
	out := make([]line, 0, len(entries))
	for _, e := range entries {
		out = append(out, line{e.Message, e.Type})
	}
	return out
}

func ms(v ...int) []time.Duration {
	out := make([]time.Duration, 0, len(v))
	for _, n := range v {
		out = append(out, time.Duration(n)*time.Millisecond)
	}
	return out
}

// gatePacer blocks every pause until released.
type gatePacer struct {
	entered chan time.Duration
	release chan struct{}
}

func newGatePacer() *gatePacer {
	return &gatePacer{entered: make(chan time.Duration, 64), release: make(chan struct{})}
}

func (p *gatePacer) Pause(ctx context.Context, d time.Duration) error {
	p.entered <- d
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.release:
		return nil
	}
}

func newTestService(t *testing.T, pacer Pacer, opts ...state.Option) *Service {
	t.Helper()
	store := state.NewStore(append([]state.Option{state.WithClock(clocktesting.NewFakePassiveClock(epoch))}, opts...)...)
	return New(store,
		WithPacer(pacer),
		WithClock(clocktesting.NewFakePassiveClock(epoch)),
		WithLogger(log.NewNopLogger()),
	)
}

func TestDeploySuccess(t *testing.T) {
	pacer := &InstantPacer{}
	svc := newTestService(t, pacer, state.WithInitialStatus(model.StatusIdle))

	if err := svc.Deploy(context.Background()); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	manifest := "rel_" + strings.ToUpper(strconv.FormatInt(epoch.UnixMilli(), 36))
	want := []line{
		{"⚡ INITIALIZING ATOMIC DEPLOYMENT", model.LogCommand},
		{"+ BUILD_MANIFEST: " + manifest, model.LogInfo},
		{"→ Creating immutable snapshot of current mount...", model.LogCommand},
		{"→ Running automated integrity checks...", model.LogInfo},
		{"✔ Health check: 200 OK", model.LogSuccess},
		{"→ Swapping production traffic to new build...", model.LogCommand},
		{"✓ DEPLOYMENT COMPLETE: System is green.", model.LogSuccess},
	}
	snap := svc.Store().Snapshot()
	if diff := cmp.Diff(want, lines(snap.Logs)); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ms(300, 500, 700, 800, 400, 400), pacer.Pauses()); diff != "" {
		t.Errorf("pauses mismatch (-want +got):\n%s", diff)
	}

	if snap.Status != model.StatusHealthy {
		t.Errorf("status = %s, want HEALTHY", snap.Status)
	}
	if snap.Vitals.CPU != 15 || snap.Vitals.Memory != 38 {
		t.Errorf("vitals = %+v, want cpu 15 memory 38", snap.Vitals)
	}
	if len(snap.History) != 1 {
		t.Fatalf("history has %d records, want 1", len(snap.History))
	}
	rec := snap.History[0]
	if rec.Version != "v2.0.101" || rec.Status != model.RecordSuccess || rec.Duration != "3.2s" || !rec.Timestamp.Equal(epoch) || rec.ID == "" {
		t.Errorf("unexpected record %+v", rec)
	}
	if snap.Alert != "" {
		t.Errorf("alert = %q, want none", snap.Alert)
	}
}

func TestDeployChaos(t *testing.T) {
	pacer := &InstantPacer{}
	svc := newTestService(t, pacer, state.WithFlags(model.Flags{Chaos: true}))

	if err := svc.Deploy(context.Background()); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	snap := svc.Store().Snapshot()
	got := lines(snap.Logs)
	wantTail := []line{
		{"→ Running automated integrity checks...", model.LogInfo},
		{"⚠️ WARNING: Chaos mode detected. Injecting entropy...", model.LogWarning},
		{"✖ ERROR: [PID 1042] Health check failed - SIGABRT", model.LogError},
		{"↻ RECOVERY: Rolling back symlink to stable snapshot...", model.LogWarning},
	}
	if len(got) != 7 {
		t.Fatalf("log has %d lines, want 7: %v", len(got), got)
	}
	if diff := cmp.Diff(wantTail, got[3:]); diff != "" {
		t.Errorf("log tail mismatch (-want +got):\n%s", diff)
	}
	for _, l := range got {
		if strings.Contains(l.Message, "DEPLOYMENT COMPLETE") {
			t.Error("chaos run logged a completion line")
		}
	}
	if diff := cmp.Diff(ms(300, 500, 700, 800, 1000, 500, 1500), pacer.Pauses()); diff != "" {
		t.Errorf("pauses mismatch (-want +got):\n%s", diff)
	}

	if snap.Status != model.StatusUnhealthy {
		t.Errorf("status = %s, want UNHEALTHY", snap.Status)
	}
	if snap.Alert != SecurityAlert {
		t.Errorf("alert = %q, want %q", snap.Alert, SecurityAlert)
	}
	if snap.Vitals.CPU != 20 || snap.Vitals.Memory != 45 {
		t.Errorf("vitals = %+v, want cpu 20 memory 45", snap.Vitals)
	}
	if len(snap.History) != 1 || snap.History[0].Status != model.RecordRollback || snap.History[0].Duration != "4.8s" {
		t.Errorf("history = %+v, want one rollback record", snap.History)
	}
}

func TestDeployPassesThroughRollingBack(t *testing.T) {
	svc := newTestService(t, &InstantPacer{}, state.WithFlags(model.Flags{Chaos: true}))
	events, cancel := svc.Store().Subscribe()
	defer cancel()

	if err := svc.Deploy(context.Background()); err != nil {
		t.Fatal(err)
	}

	var statuses []model.SystemStatus
	for {
		select {
		case ev := <-events:
			if ev.Kind == model.EventStatus {
				statuses = append(statuses, ev.Data.(model.SystemStatus))
			}
			continue
		default:
		}
		break
	}
	want := []model.SystemStatus{model.StatusDeploying, model.StatusRollingBack, model.StatusUnhealthy}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("status sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestDeployClearsPreviousRun(t *testing.T) {
	svc := newTestService(t, &InstantPacer{}, state.WithFlags(model.Flags{Chaos: true}))
	ctx := context.Background()

	if err := svc.Deploy(ctx); err != nil {
		t.Fatal(err)
	}
	svc.SetChaos(false)
	if err := svc.Deploy(ctx); err != nil {
		t.Fatal(err)
	}

	snap := svc.Store().Snapshot()
	if snap.Alert != "" {
		t.Errorf("alert = %q, want cleared", snap.Alert)
	}
	if len(snap.Logs) != 7 || snap.Logs[0].Message != "⚡ INITIALIZING ATOMIC DEPLOYMENT" {
		t.Errorf("log was not reset: %v", lines(snap.Logs))
	}

	var versions []string
	for _, r := range snap.History {
		versions = append(versions, r.Version+"/"+string(r.Status))
	}
	if diff := cmp.Diff([]string{"v2.0.102/success", "v2.0.101/rollback"}, versions); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestTriggerWhileBusy(t *testing.T) {
	pacer := newGatePacer()
	svc := newTestService(t, pacer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Deploy(ctx) }()
	<-pacer.entered

	before := svc.Store().Snapshot()

	if err := svc.Deploy(ctx); !errors.Is(err, state.ErrBusy) {
		t.Errorf("Deploy() while busy error = %v, want ErrBusy", err)
	}
	if err := svc.RunAction(ctx, "Safe Cleanup"); !errors.Is(err, state.ErrBusy) {
		t.Errorf("RunAction() while busy error = %v, want ErrBusy", err)
	}
	if err := svc.StartDeployment(); !errors.Is(err, state.ErrBusy) {
		t.Errorf("StartDeployment() while busy error = %v, want ErrBusy", err)
	}
	if diff := cmp.Diff(before, svc.Store().Snapshot()); diff != "" {
		t.Errorf("busy trigger changed the store (-before +after):\n%s", diff)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Deploy() error = %v, want context.Canceled", err)
	}
}

func TestChaosCapturedAtTrigger(t *testing.T) {
	pacer := newGatePacer()
	svc := newTestService(t, pacer)

	done := make(chan error, 1)
	go func() { done <- svc.Deploy(context.Background()) }()

	<-pacer.entered
	if f := svc.ToggleChaos(); !f.Chaos {
		t.Fatal("chaos not enabled")
	}
	close(pacer.release)
	go func() {
		for range pacer.entered {
		}
	}()

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	snap := svc.Store().Snapshot()
	if snap.Status != model.StatusHealthy || snap.History[0].Status != model.RecordSuccess {
		t.Errorf("mid-run toggle changed the outcome: status %s, history %+v", snap.Status, snap.History)
	}
	if !snap.Flags.Chaos {
		t.Error("toggle was lost")
	}
	close(pacer.entered)
}

func TestRunAction(t *testing.T) {
	tests := []struct {
		name   string
		dryRun bool
		want   []line
		pauses []time.Duration
	}{
		{
			name: "live",
			want: []line{
				{"🚀 TASK_TRIGGER: SAFE_CLEANUP", model.LogCommand},
				{"Executing Safe Cleanup procedures...", model.LogInfo},
				{"✔ Safe Cleanup process finalized. Status: Success.", model.LogSuccess},
			},
			pauses: ms(700, 400),
		},
		{
			name:   "dry run",
			dryRun: true,
			want: []line{
				{"🚀 TASK_TRIGGER: SAFE_CLEANUP", model.LogCommand},
				{"ℹ MODE: DRY_RUN (SIMULATION ONLY)", model.LogWarning},
				{"Executing Safe Cleanup procedures...", model.LogInfo},
				{"✔ Safe Cleanup process finalized. Status: Success.", model.LogSuccess},
			},
			pauses: ms(200, 700, 400),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pacer := &InstantPacer{}
			svc := newTestService(t, pacer, state.WithFlags(model.Flags{DryRun: tt.dryRun}))
			svc.Store().AppendLog(model.LogEntry{ID: "stale", Message: "stale"})

			if err := svc.RunAction(context.Background(), "Safe Cleanup"); err != nil {
				t.Fatalf("RunAction() error = %v", err)
			}

			snap := svc.Store().Snapshot()
			if diff := cmp.Diff(tt.want, lines(snap.Logs)); diff != "" {
				t.Errorf("log mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.pauses, pacer.Pauses()); diff != "" {
				t.Errorf("pauses mismatch (-want +got):\n%s", diff)
			}
			if len(snap.History) != 0 {
				t.Errorf("action wrote history: %+v", snap.History)
			}
			if snap.Status != model.StatusHealthy || snap.Vitals.CPU != 15 {
				t.Errorf("status = %s cpu = %v, want HEALTHY 15", snap.Status, snap.Vitals.CPU)
			}
		})
	}
}

func TestRunActionEmptyName(t *testing.T) {
	svc := newTestService(t, &InstantPacer{})
	for _, name := range []string{"", "   "} {
		if err := svc.RunAction(context.Background(), name); !errors.Is(err, ErrEmptyActionName) {
			t.Errorf("RunAction(%q) error = %v, want ErrEmptyActionName", name, err)
		}
	}
	if got := svc.Store().Status(); got != model.StatusHealthy {
		t.Errorf("status = %s, want HEALTHY", got)
	}
}

func TestCanceledRunLeavesStoreBusy(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, svc *Service) error
	}{
		{"deployment", func(ctx context.Context, svc *Service) error { return svc.Deploy(ctx) }},
		{"action", func(ctx context.Context, svc *Service) error { return svc.RunAction(ctx, "Safe Cleanup") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, &InstantPacer{})

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if err := tt.run(ctx, svc); !errors.Is(err, context.Canceled) {
				t.Fatalf("run error = %v, want context.Canceled", err)
			}

			if got := svc.Store().Status(); got != model.StatusDeploying {
				t.Errorf("status = %s, want DEPLOYING", got)
			}
			if got := len(svc.Store().History()); got != 0 {
				t.Errorf("history has %d records, want 0", got)
			}
			if err := svc.Deploy(context.Background()); !errors.Is(err, state.ErrBusy) {
				t.Errorf("Deploy() after cancel error = %v, want ErrBusy", err)
			}
		})
	}
}

func TestTaskKey(t *testing.T) {
	tests := map[string]string{
		"Log Rotation":     "LOG_ROTATION",
		"Automated Backup": "AUTOMATED_BACKUP",
		"purge":            "PURGE",
		"Log  Rotation":    "LOG__ROTATION",
		" Backup":          "_BACKUP",
		"a\tb\n":           "A_B_",
	}
	for in, want := range tests {
		if got := TaskKey(in); got != want {
			t.Errorf("TaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStartDeployment(t *testing.T) {
	svc := newTestService(t, &InstantPacer{})

	if err := svc.StartDeployment(); err != nil {
		t.Fatalf("StartDeployment() error = %v", err)
	}
	svc.Wait()

	if got := svc.Store().Status(); got != model.StatusHealthy {
		t.Errorf("status = %s, want HEALTHY", got)
	}
	if got := len(svc.Store().History()); got != 1 {
		t.Errorf("history has %d records, want 1", got)
	}
}

func TestSaveEditor(t *testing.T) {
	pacer := &InstantPacer{}
	svc := newTestService(t, pacer)
	ctx := context.Background()

	if err := svc.SaveEditor(ctx); !errors.Is(err, state.ErrEditorClosed) {
		t.Fatalf("SaveEditor() with no editor error = %v", err)
	}
	if _, err := svc.OpenEditor("firewall"); !errors.Is(err, state.ErrUnknownScript) {
		t.Fatalf("OpenEditor(firewall) error = %v", err)
	}

	if _, err := svc.OpenEditor(model.ScriptBackup); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetScript(model.ScriptBackup, "#!/bin/bash\necho new"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SaveEditor(ctx); err != nil {
		t.Fatalf("SaveEditor() error = %v", err)
	}

	snap := svc.Store().Snapshot()
	if snap.Editor != nil {
		t.Error("editor still open")
	}
	want := []line{{"SYSTEM: backup.sh recompiled and applied.", model.LogSuccess}}
	if diff := cmp.Diff(want, lines(snap.Logs)); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ms(1200), pacer.Pauses()); diff != "" {
		t.Errorf("pauses mismatch (-want +got):\n%s", diff)
	}
	if text, _ := svc.Script(model.ScriptBackup); text != "#!/bin/bash\necho new" {
		t.Errorf("script text = %q", text)
	}
}

func TestExportLogs(t *testing.T) {
	svc := newTestService(t, &InstantPacer{})
	if got := svc.ExportLogs(); got != "" {
		t.Errorf("empty export = %q, want empty", got)
	}

	if err := svc.RunAction(context.Background(), "Log Rotation"); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"[10:00:00] 🚀 TASK_TRIGGER: LOG_ROTATION",
		"[10:00:00] Executing Log Rotation procedures...",
		"[10:00:00] ✔ Log Rotation process finalized. Status: Success.",
	}, "\n")
	if got := svc.ExportLogs(); got != want {
		t.Errorf("ExportLogs() = %q, want %q", got, want)
	}
}

func TestToggles(t *testing.T) {
	svc := newTestService(t, &InstantPacer{})

	if f := svc.ToggleChaos(); !f.Chaos || f.DryRun {
		t.Errorf("after ToggleChaos flags = %+v", f)
	}
	if f := svc.ToggleDryRun(); !f.Chaos || !f.DryRun {
		t.Errorf("after ToggleDryRun flags = %+v", f)
	}
	if f := svc.SetChaos(false); f.Chaos || !f.DryRun {
		t.Errorf("after SetChaos(false) flags = %+v", f)
	}
	if f := svc.SetDryRun(false); f != (model.Flags{}) {
		t.Errorf("after SetDryRun(false) flags = %+v", f)
	}
}

func TestShutdownAbortsBackgroundSequences(t *testing.T) {
	pacer := newGatePacer()
	svc := newTestService(t, pacer)

	if err := svc.StartDeployment(); err != nil {
		t.Fatal(err)
	}
	<-pacer.entered

	svc.Shutdown()

	if got := len(svc.Store().History()); got != 0 {
		t.Errorf("aborted deployment recorded %d records", got)
	}
}

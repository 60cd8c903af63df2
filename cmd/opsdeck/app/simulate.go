package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/service"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/pkg/log"
)

type simulateOptions struct {
	Chaos   bool
	DryRun  bool
	Action  string
	Copy    bool
	Instant bool
	Pace    float64
	Verbose bool
}

func newSimulateCommand() *cobra.Command {
	o := &simulateOptions{Pace: 1}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one simulated deployment or action in the terminal",
		Long: `Run one simulated deployment (or, with --action, one maintenance action)
against a fresh panel, printing each log line as it is emitted followed by
the final status and the deployment history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.Verbose {
				opts := log.NewOptions()
				opts.OutputPaths = []string{"stderr"}
				log.Init(opts)
			}
			return o.run(genericapiserver.SetupSignalContext(), cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&o.Chaos, "chaos", o.Chaos, "Enable chaos mode, the deployment fails and rolls back.")
	fs.BoolVar(&o.DryRun, "dry-run", o.DryRun, "Enable dry run for generic actions.")
	fs.StringVar(&o.Action, "action", o.Action, "Run the named generic action instead of a deployment, e.g. \"Log Rotation\".")
	fs.BoolVar(&o.Copy, "copy", o.Copy, "Copy the exported log to the system clipboard.")
	fs.BoolVar(&o.Instant, "instant", o.Instant, "Skip every delay.")
	fs.Float64Var(&o.Pace, "pace", o.Pace, "Multiplier applied to every step delay.")
	fs.BoolVar(&o.Verbose, "verbose", o.Verbose, "Log sequencer activity to stderr.")

	return cmd
}

func (o *simulateOptions) pacer() service.Pacer {
	if o.Instant {
		return &service.InstantPacer{}
	}
	return service.NewClockPacer(o.Pace)
}

func (o *simulateOptions) run(ctx context.Context, out io.Writer) error {
	store := state.NewStore(state.WithFlags(model.Flags{Chaos: o.Chaos, DryRun: o.DryRun}))
	svc := service.New(store, service.WithPacer(o.pacer()))
	defer svc.Shutdown()

	events, cancel := store.Subscribe()
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if o.Action != "" {
			done <- svc.RunAction(ctx, o.Action)
			return
		}
		done <- svc.Deploy(ctx)
	}()

	var runErr error
	for finished := false; !finished; {
		select {
		case ev := <-events:
			printEvent(out, ev)
		case runErr = <-done:
			finished = true
		}
	}
	for drained := false; !drained; {
		select {
		case ev := <-events:
			printEvent(out, ev)
		default:
			drained = true
		}
	}
	if runErr != nil {
		return runErr
	}

	snap := store.Snapshot()
	fmt.Fprintln(out)
	printSummary(out, snap)

	if o.Copy {
		if err := clipboard.WriteAll(model.ExportLogs(snap.Logs)); err != nil {
			return fmt.Errorf("failed to copy logs: %w", err)
		}
		fmt.Fprintln(out, "Logs copied to clipboard.")
	}
	return nil
}

func printEvent(out io.Writer, ev model.Event) {
	if ev.Kind != model.EventLogAppended {
		return
	}
	e := ev.Data.(model.LogEntry)
	fmt.Fprintf(out, "%-8s %s\n", strings.ToUpper(string(e.Type)), e.Line())
}

func printSummary(out io.Writer, snap model.Snapshot) {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true

	table.AddRow("STATUS:", snap.Status)
	table.AddRow("CPU:", fmt.Sprintf("%.0f%%", snap.Vitals.CPU))
	table.AddRow("MEMORY:", fmt.Sprintf("%.0f%%", snap.Vitals.Memory))
	if snap.Alert != "" {
		table.AddRow("ALERT:", snap.Alert)
	}
	fmt.Fprintln(out, table)

	if len(snap.History) == 0 {
		return
	}

	history := uitable.New()
	history.AddRow("VERSION", "STATUS", "DURATION", "TIME")
	for _, r := range snap.History {
		history.AddRow(r.Version, strings.ToUpper(string(r.Status)), r.Duration, r.Timestamp.Format(model.TimestampLayout))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, history)
}

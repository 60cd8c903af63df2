package deck

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/service"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/internal/deck/server"
	"github.com/opsdeck/opsdeck/internal/pkg/metrics"
	"github.com/opsdeck/opsdeck/pkg/log"
)

// Deck is the running panel: the sequencer, the vitals jitter and the servers.
type Deck struct {
	svc           *service.Service
	jitter        *service.Jitter
	serverManager *server.Manager
}

// Service returns the sequencer.
func (d *Deck) Service() *service.Service {
	return d.svc
}

// Run blocks until ctx is canceled or a server fails.
func (d *Deck) Run(ctx context.Context) error {
	defer d.svc.Shutdown()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.jitter.Run(ctx)
	})
	g.Go(func() error {
		observe(ctx, d.svc.Store())
		return nil
	})
	g.Go(func() error {
		return d.serverManager.Start(ctx)
	})

	log.Info("Deck started", "status", d.svc.Store().Status())
	err := g.Wait()
	log.Info("Deck stopped")
	return err
}

// ApplyFlags sets the panel toggles, e.g. after a config reload.
// A running action keeps the values it started with.
func (d *Deck) ApplyFlags(chaos, dryRun bool) {
	d.svc.SetChaos(chaos)
	d.svc.SetDryRun(dryRun)
	log.Info("Panel flags applied", "chaos", chaos, "dryRun", dryRun)
}

// observe mirrors store state into the prometheus gauges until ctx is done.
func observe(ctx context.Context, store *state.Store) {
	events, cancel := store.Subscribe()
	defer cancel()

	snap := store.Snapshot()
	record(model.Event{Kind: model.EventStatus, Data: snap.Status})
	record(model.Event{Kind: model.EventVitals, Data: snap.Vitals})

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			record(ev)
		}
	}
}

func record(ev model.Event) {
	switch ev.Kind {
	case model.EventStatus:
		all := make([]string, 0, len(model.Statuses()))
		for _, s := range model.Statuses() {
			all = append(all, string(s))
		}
		metrics.SetStatus(string(ev.Data.(model.SystemStatus)), all)
	case model.EventVitals:
		v := ev.Data.(model.Vitals)
		metrics.CPU.Set(v.CPU)
		metrics.Memory.Set(v.Memory)
	}
}

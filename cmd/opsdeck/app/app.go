package app

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/opsdeck/opsdeck/cmd/opsdeck/app/options"
	"github.com/opsdeck/opsdeck/internal/deck"
	"github.com/opsdeck/opsdeck/pkg/app"
	"github.com/opsdeck/opsdeck/pkg/log"
)

const (
	commandName = "opsdeck"
	commandDesc = `opsdeck serves a simulated deployment and operations control panel.
Deployments, maintenance actions, logs, vitals and history are fabricated on
timers; nothing is executed, deployed or persisted.`
)

func NewApp() *app.App {
	opts := options.NewDeckOptions()

	// Set once the deck is built; config reloads before that are no-ops.
	var running atomic.Pointer[deck.Deck]

	application := app.NewApp(
		commandName,
		"Launch the opsdeck control panel server",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithSubcommands(newSimulateCommand()),
		app.WithConfigChangeFunc(func(e fsnotify.Event) {
			if d := running.Load(); d != nil {
				d.ApplyFlags(opts.SimOptions.Chaos, opts.SimOptions.DryRun)
			}
		}),
		app.WithRunFunc(run(opts, &running)),
	)
	return application
}

func run(opts *options.DeckOptions, running *atomic.Pointer[deck.Deck]) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer log.Sync()

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		d, err := cfg.NewDeck()
		if err != nil {
			return fmt.Errorf("failed to create deck: %w", err)
		}
		running.Store(d)

		return d.Run(ctx)
	}
}

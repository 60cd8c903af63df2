package deck

import (
	"fmt"

	"k8s.io/utils/clock"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/service"
	"github.com/opsdeck/opsdeck/internal/deck/core/state"
	"github.com/opsdeck/opsdeck/internal/deck/server"
	"github.com/opsdeck/opsdeck/pkg/mqtt"
	"github.com/opsdeck/opsdeck/pkg/options"
)

type Config struct {
	HttpOptions *options.HttpOptions
	MqttOptions *options.MqttOptions
	SimOptions  *options.SimOptions
}

// NewStore builds the state store described by the sim options.
func (cfg *Config) NewStore() (*state.Store, error) {
	status, err := model.ParseSystemStatus(cfg.SimOptions.InitialStatus)
	if err != nil {
		return nil, err
	}

	return state.NewStore(
		state.WithInitialStatus(status),
		state.WithFlags(model.Flags{Chaos: cfg.SimOptions.Chaos, DryRun: cfg.SimOptions.DryRun}),
		state.WithEventBuffer(cfg.SimOptions.EventBuffer),
	), nil
}

// NewService builds the sequencer on store, paced by the sim options.
func (cfg *Config) NewService(store *state.Store) *service.Service {
	return service.New(store, service.WithPacer(service.NewClockPacer(cfg.SimOptions.Pace)))
}

func (cfg *Config) NewDeck() (*Deck, error) {
	store, err := cfg.NewStore()
	if err != nil {
		return nil, err
	}
	svc := cfg.NewService(store)

	var client mqtt.Client
	if cfg.MqttOptions.Enabled() {
		client, err = InitializeMQTTClient(cfg.MqttOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
	}

	serverConfig := &server.Config{
		HttpOptions: cfg.HttpOptions,
		MqttOptions: cfg.MqttOptions,
	}

	return &Deck{
		svc:           svc,
		jitter:        service.NewJitter(store, clock.RealClock{}, cfg.SimOptions.JitterPeriod, cfg.SimOptions.Seed),
		serverManager: server.NewManager(serverConfig, svc, client),
	}, nil
}

package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/opsdeck/opsdeck/internal/deck/core/service"
	"github.com/opsdeck/opsdeck/internal/deck/server/http"
	"github.com/opsdeck/opsdeck/internal/deck/server/mqtt"
	"github.com/opsdeck/opsdeck/pkg/log"
	pkgmqtt "github.com/opsdeck/opsdeck/pkg/mqtt"
	"github.com/opsdeck/opsdeck/pkg/mqtt/topic"
)

// Server defines the common interface for all sub-servers (http, mqtt).
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of all protocol servers.
type Manager struct {
	servers []Server
}

// NewManager creates the HTTP server and, when client is not nil, the MQTT
// event mirror.
func NewManager(cfg *Config, svc *service.Service, client pkgmqtt.Client) *Manager {
	var (
		servers []Server
		checks  []http.ReadyCheck
	)

	if client != nil {
		mqttSrv := mqtt.NewServer(client, topic.NewBuilder(cfg.MqttOptions.TopicRoot), cfg.MqttOptions.DeckID, svc)
		servers = append(servers, mqttSrv)
		checks = append(checks, mqttSrv.Ready)
	}

	servers = append(servers, http.NewServer(cfg.HttpOptions, svc, checks...))

	return &Manager{
		servers: servers,
	}
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}

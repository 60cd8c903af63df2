package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/deck/core/service"
	"github.com/opsdeck/opsdeck/internal/pkg/mqtt/paths"
	"github.com/opsdeck/opsdeck/pkg/log"
	pkgmqtt "github.com/opsdeck/opsdeck/pkg/mqtt"
	"github.com/opsdeck/opsdeck/pkg/mqtt/topic"
)

const qos = 1

// Server mirrors store events to a broker and accepts control commands.
type Server struct {
	client pkgmqtt.Client
	topics *topic.Builder
	deckID string
	svc    *service.Service
}

// NewServer creates a new MQTT server (client).
func NewServer(client pkgmqtt.Client, builder *topic.Builder, deckID string, svc *service.Service) *Server {
	return &Server{
		client: client,
		topics: builder,
		deckID: deckID,
		svc:    svc,
	}
}

// Start connects to the broker, subscribes to the control topic and
// publishes every store event until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.client.OnConnect(s.announce)
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		log.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// A clean disconnect suppresses the will.
		if err := s.publishPresence(shutdownCtx, paths.Offline); err != nil {
			log.Error(err, "Failed to publish presence")
		}
		s.client.Disconnect(shutdownCtx)
	}()

	events, cancel := s.svc.Store().Subscribe()
	defer cancel()

	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		return err
	}
	log.Info("MQTT Connected")

	control := s.topics.Build(paths.Control, s.deckID)
	if err := s.client.Subscribe(ctx, control, qos, func(c context.Context, t string, p []byte) {
		if err := s.handleCommand(c, p); err != nil {
			log.Error(err, "Control command failed", "topic", t)
		}
	}); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %s, err: %w", control, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.publish(ctx, ev); err != nil {
				log.Error(err, "Failed to mirror event", "kind", ev.Kind)
			}
		}
	}
}

// Ready reports an error while the broker is unreachable.
func (s *Server) Ready() error {
	if !s.client.IsConnected() {
		return fmt.Errorf("mqtt broker not connected")
	}
	return nil
}

func (s *Server) publish(ctx context.Context, ev model.Event) error {
	segment, retain, ok := route(ev.Kind)
	if !ok {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.topics.Build(segment, s.deckID), qos, retain, payload)
}

// announce marks the deck online and reseeds the retained topics after
// every connect.
func (s *Server) announce(ctx context.Context) {
	if err := s.publishPresence(ctx, paths.Online); err != nil {
		log.Error(err, "Failed to publish presence")
	}
	if err := s.publishSnapshot(ctx); err != nil {
		log.Error(err, "Failed to publish initial state")
	}
}

func (s *Server) publishPresence(ctx context.Context, presence string) error {
	return s.client.Publish(ctx, s.topics.Build(paths.Presence, s.deckID), qos, true, []byte(presence))
}

// publishSnapshot seeds the retained topics.
func (s *Server) publishSnapshot(ctx context.Context) error {
	snap := s.svc.Store().Snapshot()
	now := time.Now()

	for _, ev := range []model.Event{
		{Kind: model.EventStatus, Time: now, Data: snap.Status},
		{Kind: model.EventVitals, Time: now, Data: snap.Vitals},
		{Kind: model.EventAlert, Time: now, Data: snap.Alert},
		{Kind: model.EventFlags, Time: now, Data: snap.Flags},
	} {
		if err := s.publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// route maps an event kind to its topic segment and retain flag.
func route(kind model.EventKind) (string, bool, bool) {
	switch kind {
	case model.EventStatus:
		return paths.Status, true, true
	case model.EventVitals:
		return paths.Vitals, true, true
	case model.EventAlert:
		return paths.Alert, true, true
	case model.EventFlags:
		return paths.Flags, true, true
	case model.EventLogAppended, model.EventLogCleared:
		return paths.Logs, false, true
	case model.EventHistory:
		return paths.History, false, true
	case model.EventEditor:
		return paths.Editor, false, true
	case model.EventScript:
		return paths.Scripts, false, true
	}
	return "", false, false
}

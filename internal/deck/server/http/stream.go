package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/pkg/metrics"
	"github.com/opsdeck/opsdeck/pkg/log"
)

const writeWait = 5 * time.Second

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans store events out to every stream subscriber.
type Hub struct {
	clients  map[Subscriber]struct{}
	register chan Subscriber
	unreg    chan Subscriber
	done     chan struct{}
}

// NewHub creates a Hub. Run must be called to serve it.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[Subscriber]struct{}),
		register: make(chan Subscriber),
		unreg:    make(chan Subscriber),
		done:     make(chan struct{}),
	}
}

// Run broadcasts events until ctx is canceled or events is closed, then
// closes every client.
func (h *Hub) Run(ctx context.Context, events <-chan model.Event) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			c.Close()
		}
		metrics.StreamSubscribers.Set(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unreg:
			delete(h.clients, c)
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Error(err, "Failed to encode stream event", "kind", ev.Kind)
				continue
			}
			for c := range h.clients {
				if err := c.Send(payload); err != nil {
					c.Close()
					delete(h.clients, c)
				}
			}
		}
		metrics.StreamSubscribers.Set(float64(len(h.clients)))
	}
}

// Register adds a client. It reports false if the hub has stopped.
func (h *Hub) Register(c Subscriber) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(c Subscriber) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

// wsClient is a websocket stream subscriber.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Warn("Websocket send failed", "error", err)
		return err
	}
	return nil
}

func (c *wsClient) Close() {
	_ = c.conn.Close()
}

// handleStream upgrades to a websocket, sends a snapshot event and then
// every store event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error(err, "Websocket upgrade failed")
		return
	}
	client := &wsClient{conn: conn}

	hello, err := json.Marshal(model.Event{
		Kind: model.EventSnapshot,
		Time: time.Now(),
		Data: s.svc.Store().Snapshot(),
	})
	if err != nil || client.Send(hello) != nil {
		client.Close()
		return
	}

	if !s.hub.Register(client) {
		client.Close()
		return
	}

	go func() {
		defer func() {
			s.hub.Unregister(client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/opsdeck/opsdeck/pkg/log"
	"github.com/opsdeck/opsdeck/pkg/mqtt/topic"
)

const (
	reconnectBackoff = 3 * time.Second
	hookTimeout      = 10 * time.Second
)

var errNotStarted = errors.New("client not started")

type subscription struct {
	qos     byte
	handler MessageHandler
}

type pahoClient struct {
	cfg *ClientConfig
	cm  *autopaho.ConnectionManager

	connected atomic.Bool

	mu    sync.RWMutex
	subs  map[string]subscription
	hooks []ConnectHandler
}

// NewClient validates cfg and returns a Client backed by autopaho.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mqtt config is required")
	}

	setDefaultConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &pahoClient{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}, nil
}

func (c *pahoClient) Start(ctx context.Context) error {
	brokerURL, _ := url.Parse(c.cfg.BrokerURL)

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(reconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify},
		WillMessage:                   c.will(),
		OnConnectionUp:                c.connectionUp,
		OnConnectError: func(err error) {
			c.connected.Store(false)
			log.Error(err, "MQTT Connection failed, retrying...")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnClientError: func(err error) {
				c.connected.Store(false)
				log.Error(err, "MQTT Client internal error")
			},
			OnServerDisconnect: c.serverDisconnect,
			OnPublishReceived:  []func(paho.PublishReceived) (bool, error){c.dispatch},
		},
	}

	log.Info("Starting MQTT Client", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID)

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return err
	}
	c.cm = cm
	return nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	if c.cm == nil {
		return
	}
	_ = c.cm.Disconnect(ctx)
	c.connected.Store(false)
	log.Info("MQTT Client disconnected")
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	if c.cm == nil {
		return errNotStarted
	}
	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(qos),
		Retain:  retain,
		Payload: payload,
	})
	return err
}

func (c *pahoClient) Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error {
	if c.cm == nil {
		return errNotStarted
	}

	// Recorded before the packet goes out so a reconnect in between still
	// restores it.
	c.mu.Lock()
	c.subs[filter] = subscription{qos: byte(qos), handler: handler}
	c.mu.Unlock()

	if err := c.subscribe(ctx, c.cm, filter, byte(qos)); err != nil {
		return fmt.Errorf("failed to send subscription packet: %w", err)
	}
	log.Info("Subscribed to topic", "topic", filter)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, filter string) error {
	if c.cm == nil {
		return errNotStarted
	}

	c.mu.Lock()
	delete(c.subs, filter)
	c.mu.Unlock()

	_, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{filter}})
	return err
}

func (c *pahoClient) OnConnect(fn ConnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return errNotStarted
	}
	return c.cm.AwaitConnection(ctx)
}

func (c *pahoClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *pahoClient) subscribe(ctx context.Context, cm *autopaho.ConnectionManager, filter string, qos byte) error {
	_, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: qos}},
	})
	return err
}

func (c *pahoClient) connectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.connected.Store(true)
	log.Info("MQTT Connection established")

	c.mu.RLock()
	subs := make(map[string]byte, len(c.subs))
	for filter, sub := range c.subs {
		subs[filter] = sub.qos
	}
	hooks := append([]ConnectHandler(nil), c.hooks...)
	c.mu.RUnlock()

	// Runs on the connection goroutine; anything that publishes must not block it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()

		for filter, qos := range subs {
			if err := c.subscribe(ctx, cm, filter, qos); err != nil {
				log.Error(err, "Failed to re-subscribe", "topic", filter)
			}
		}
		for _, fn := range hooks {
			fn(ctx)
		}
	}()
}

func (c *pahoClient) serverDisconnect(d *paho.Disconnect) {
	c.connected.Store(false)
	if d.Properties != nil && d.Properties.ReasonString != "" {
		log.Warn("MQTT Server requested disconnect", "reason", d.Properties.ReasonString)
		return
	}
	log.Warn("MQTT Server requested disconnect", "reasonCode", d.ReasonCode)
}

// dispatch hands a received publish to every subscription whose filter
// matches, each on its own goroutine.
func (c *pahoClient) dispatch(p paho.PublishReceived) (bool, error) {
	name, payload := p.Packet.Topic, p.Packet.Payload

	c.mu.RLock()
	var handlers []MessageHandler
	for filter, sub := range c.subs {
		if topic.Match(filter, name) {
			handlers = append(handlers, sub.handler)
		}
	}
	c.mu.RUnlock()

	if len(handlers) == 0 {
		log.Debug("Received message on unhandled topic", "topic", name)
	}
	for _, h := range handlers {
		go h(context.Background(), name, payload)
	}
	return true, nil
}

func (c *pahoClient) will() *paho.WillMessage {
	if c.cfg.Will == nil {
		return nil
	}
	return &paho.WillMessage{
		Topic:   c.cfg.Will.Topic,
		Payload: c.cfg.Will.Payload,
		QoS:     c.cfg.Will.QoS,
		Retain:  c.cfg.Will.Retain,
	}
}

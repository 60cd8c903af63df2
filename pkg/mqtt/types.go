package mqtt

import (
	"context"
)

// MessageHandler processes one received message. Handlers run on their own goroutine.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// ConnectHandler runs after every successful (re)connect.
type ConnectHandler func(ctx context.Context)

// Message is a single application message, used for the last will.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Client is the subset of an MQTT client opsdeck relies on.
type Client interface {
	// Start begins connecting in the background and returns immediately.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection. The last will is not sent.
	Disconnect(ctx context.Context)

	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for a topic filter. Subscriptions survive reconnects.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe removes the handler and sends an UNSUBSCRIBE packet.
	Unsubscribe(ctx context.Context, topic string) error

	// OnConnect registers fn to run after each connect. Register before Start.
	OnConnect(fn ConnectHandler)

	// AwaitConnection blocks until connected or ctx is done.
	AwaitConnection(ctx context.Context) error

	// IsConnected reports the last observed connection state.
	IsConnected() bool
}

// Package transport implements the pub/sub transport port: connecting to a
// broker, publishing, subscribing, and servicing the connection's network
// loop. The original firmware talked to the broker through MicroPython's
// umqtt.simple; the Go runtime wraps eclipse/paho.mqtt.golang behind the
// same port so a test can swap in an in-memory loopback instead.
package transport

import "context"

// Message is a single inbound publish delivered to an OnMessage callback.
type Message struct {
	Topic   string
	Payload []byte
}

// MessageHandler is invoked for every inbound publish matching a
// subscription, on whatever goroutine the transport implementation uses to
// service its network loop.
type MessageHandler func(msg Message)

// LastWill describes the message a broker publishes on this client's
// behalf if the connection drops without a clean disconnect.
type LastWill struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Transport is the port every connector talks to the broker through.
type Transport interface {
	// Connect dials the broker and blocks until the connection is
	// established or ctx is done.
	Connect(ctx context.Context) error

	// Disconnect performs a clean disconnect, publishing nothing further.
	Disconnect()

	// IsConnected reports the transport's last known connection state.
	IsConnected() bool

	Subscribe(topic string, qos byte) error
	Unsubscribe(topic string) error

	Publish(topic string, payload []byte, qos byte, retain bool) error

	// SetLastWill configures the broker-side last-will message. Must be
	// called before Connect to take effect.
	SetLastWill(will LastWill)

	// SetOnMessage installs the callback invoked for inbound publishes.
	SetOnMessage(handler MessageHandler)

	// SetOnConnectionLost installs the callback invoked when an
	// established connection drops without a clean Disconnect. Must be
	// called before Connect to take effect.
	SetOnConnectionLost(handler func(err error))
}

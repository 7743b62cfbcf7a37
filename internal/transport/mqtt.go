package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the broker dial.
type MQTTConfig struct {
	BrokerURL    string // e.g. "tcp://broker.local:1883"
	ClientID     string
	Username     string
	Password     string
	KeepAlive    time.Duration
	ConnectRetry bool
}

// MQTT is the production Transport, backed by eclipse/paho.mqtt.golang.
type MQTT struct {
	cfg    MQTTConfig
	opts   *mqtt.ClientOptions
	client mqtt.Client

	mu      sync.RWMutex
	onMsg   MessageHandler
	onLost  func(err error)
	willSet bool
}

// NewMQTT builds an MQTT transport from cfg. Connect must be called before
// use.
func NewMQTT(cfg MQTTConfig) *MQTT {
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetAutoReconnect(false). // the connector owns its own backoff/retry loop
		SetCleanSession(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	t := &MQTT{cfg: cfg, opts: opts}
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		t.dispatch(msg.Topic(), msg.Payload())
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		t.mu.RLock()
		h := t.onLost
		t.mu.RUnlock()
		if h != nil {
			h(err)
		}
	})
	return t
}

func (t *MQTT) dispatch(topic string, payload []byte) {
	t.mu.RLock()
	h := t.onMsg
	t.mu.RUnlock()
	if h != nil {
		h(Message{Topic: topic, Payload: payload})
	}
}

func (t *MQTT) SetLastWill(will LastWill) {
	t.opts.SetWill(will.Topic, string(will.Payload), will.QoS, will.Retain)
	t.willSet = true
}

func (t *MQTT) SetOnMessage(handler MessageHandler) {
	t.mu.Lock()
	t.onMsg = handler
	t.mu.Unlock()
}

func (t *MQTT) SetOnConnectionLost(handler func(err error)) {
	t.mu.Lock()
	t.onLost = handler
	t.mu.Unlock()
}

func (t *MQTT) Connect(ctx context.Context) error {
	t.client = mqtt.NewClient(t.opts)
	tok := t.client.Connect()

	done := make(chan struct{})
	go func() { tok.Wait(); close(done) }()

	select {
	case <-done:
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *MQTT) Disconnect() {
	if t.client != nil && t.client.IsConnected() {
		t.client.Disconnect(250)
	}
}

func (t *MQTT) IsConnected() bool {
	return t.client != nil && t.client.IsConnected()
}

func (t *MQTT) Subscribe(topic string, qos byte) error {
	tok := t.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		t.dispatch(msg.Topic(), msg.Payload())
	})
	tok.Wait()
	return tok.Error()
}

func (t *MQTT) Unsubscribe(topic string) error {
	tok := t.client.Unsubscribe(topic)
	tok.Wait()
	return tok.Error()
}

func (t *MQTT) Publish(topic string, payload []byte, qos byte, retain bool) error {
	if t.client == nil {
		return fmt.Errorf("transport: publish before connect")
	}
	tok := t.client.Publish(topic, qos, retain, payload)
	tok.Wait()
	return tok.Error()
}

package transport

import (
	"context"
	"strings"
	"sync"
)

// Loopback is an in-process Transport used by component tests: Publish
// calls are delivered directly
// to any matching Subscribe, with MQTT single-level ('+') and multi-level
// ('#') wildcard matching, no network involved.
type Loopback struct {
	mu        sync.Mutex
	connected bool
	subs      map[string]byte
	onMsg     MessageHandler
	onLost    func(err error)
	will      LastWill
	Published []Message // every publish, in order, for assertions in tests
}

func NewLoopback() *Loopback {
	return &Loopback{subs: make(map[string]byte)}
}

func (l *Loopback) Connect(_ context.Context) error {
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Disconnect() {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
}

func (l *Loopback) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Loopback) Subscribe(topic string, qos byte) error {
	l.mu.Lock()
	l.subs[topic] = qos
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Unsubscribe(topic string) error {
	l.mu.Lock()
	delete(l.subs, topic)
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Publish(topic string, payload []byte, _ byte, _ bool) error {
	l.mu.Lock()
	l.Published = append(l.Published, Message{Topic: topic, Payload: payload})
	var matched bool
	for sub := range l.subs {
		if topicMatches(sub, topic) {
			matched = true
			break
		}
	}
	handler := l.onMsg
	l.mu.Unlock()

	if matched && handler != nil {
		handler(Message{Topic: topic, Payload: payload})
	}
	return nil
}

func (l *Loopback) SetLastWill(will LastWill) {
	l.mu.Lock()
	l.will = will
	l.mu.Unlock()
}

func (l *Loopback) SetOnMessage(handler MessageHandler) {
	l.mu.Lock()
	l.onMsg = handler
	l.mu.Unlock()
}

func (l *Loopback) SetOnConnectionLost(handler func(err error)) {
	l.mu.Lock()
	l.onLost = handler
	l.mu.Unlock()
}

// LoseConnection simulates an ungraceful broker drop: the transport goes
// disconnected and the connection-lost callback fires, as paho's would.
func (l *Loopback) LoseConnection(err error) {
	l.mu.Lock()
	l.connected = false
	handler := l.onLost
	l.mu.Unlock()

	if handler != nil {
		handler(err)
	}
}

// topicMatches reports whether topic matches an MQTT subscription filter
// containing '+' (single level) and '#' (trailing, multi level) wildcards.
func topicMatches(filter, topic string) bool {
	fSegs := strings.Split(filter, "/")
	tSegs := strings.Split(topic, "/")

	for i, f := range fSegs {
		if f == "#" {
			return true
		}
		if i >= len(tSegs) {
			return false
		}
		if f != "+" && f != tSegs[i] {
			return false
		}
	}
	return len(fSegs) == len(tSegs)
}

package connector

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"
)

// Lifecycle states, the Go reshaping of the original firmware's implicit
// connect()/disconnect() state progression into an explicit state machine.
const (
	StateUnconfigured = "unconfigured"
	StateConfigured   = "configured"
	StateNetworkUp    = "network_up"
	StateBrokerUp     = "broker_up"
	StateRunning      = "running"
	StateStopped      = "stopped"
)

// Lifecycle events.
const (
	EventConfigure     = "configure"
	EventNetworkUp     = "network_up"
	EventBrokerUp      = "broker_up"
	EventStart         = "start"
	EventStop          = "stop"
	EventDisconnect    = "disconnect" // fired when the broker link drops mid-run
)

func newLifecycle(log *slog.Logger, onEnter map[string]func(ctx context.Context, e *fsm.Event)) *fsm.FSM {
	callbacks := fsm.Callbacks{}
	for state, fn := range onEnter {
		callbacks["enter_"+state] = fn
	}
	callbacks["enter_state"] = func(_ context.Context, e *fsm.Event) {
		log.Debug("connector lifecycle transition", "from", e.Src, "to", e.Dst, "event", e.Event)
	}

	return fsm.NewFSM(
		StateUnconfigured,
		fsm.Events{
			{Name: EventConfigure, Src: []string{StateUnconfigured}, Dst: StateConfigured},
			{Name: EventNetworkUp, Src: []string{StateConfigured, StateStopped}, Dst: StateNetworkUp},
			{Name: EventBrokerUp, Src: []string{StateNetworkUp}, Dst: StateBrokerUp},
			{Name: EventStart, Src: []string{StateBrokerUp}, Dst: StateRunning},
			{Name: EventDisconnect, Src: []string{StateRunning}, Dst: StateStopped},
			{Name: EventStop, Src: []string{StateRunning, StateBrokerUp, StateNetworkUp}, Dst: StateStopped},
		},
		callbacks,
	)
}

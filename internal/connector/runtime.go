// Package connector wires identity, transport, serializer, the affordance
// store, the scheduler, and the core/model action routers into the single
// long-running Runtime object a device boots. It is the Go reshaping of
// the original firmware's umqtt_core.runtime.uMQTTRuntime: connect() with
// exponential backoff, a registration publish, topic demux between core and
// model actions, and a main loop that waits for shutdown while the
// transport delivers inbound messages on its own goroutines.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/les2feup/citylink/internal/affordance"
	"github.com/les2feup/citylink/internal/coreactions"
	"github.com/les2feup/citylink/internal/domain"
	"github.com/les2feup/citylink/internal/metrics"
	"github.com/les2feup/citylink/internal/platform"
	"github.com/les2feup/citylink/internal/router"
	"github.com/les2feup/citylink/internal/scheduler"
	"github.com/les2feup/citylink/internal/serializer"
	"github.com/les2feup/citylink/internal/transport"
)

// recentEventCap bounds the in-memory event log the debug surface reads
// from; it is a diagnostic convenience, never a delivery guarantee.
const recentEventCap = 50

// EventRecord is a point-in-time record of an emitted event, kept only for
// the local debug surface.
type EventRecord struct {
	Name      string
	Namespace string // "model" or "core"
	Payload   any
	At        time.Time
}

// RetryConfig configures the exponential backoff connect loop.
type RetryConfig struct {
	BaseWait time.Duration
	MaxWait  time.Duration
	MaxTries int // 0 means retry forever
}

// DefaultRetryConfig matches the original firmware's with_exponential_backoff
// defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{BaseWait: time.Second, MaxWait: 60 * time.Second, MaxTries: 0}
}

// Runtime is the device's single long-running kernel instance.
type Runtime struct {
	identity domain.Identity
	trans    transport.Transport
	codec    serializer.Codec
	store    *affordance.Store
	sched    *scheduler.Scheduler
	core     *router.Router
	reset    platform.Resetter
	retry    RetryConfig
	log      *slog.Logger
	metrics  *metrics.Registry

	fsm           *fsm.FSM
	lastTaskStats scheduler.Stats

	recentMu sync.Mutex
	recent   []EventRecord
}

// Config bundles every collaborator Runtime needs at construction.
// Identity, Transport, Codec, Scheduler and Resetter are required — a
// connector with a nil transport is a programming error, not a degraded
// mode. A nil Log falls back to slog.Default() and a zero Retry to
// DefaultRetryConfig().
type Config struct {
	Identity  domain.Identity
	Transport transport.Transport
	Codec     serializer.Codec
	Scheduler *scheduler.Scheduler
	Resetter  platform.Resetter
	Retry     RetryConfig
	Log       *slog.Logger
	// Metrics is optional; nil disables dispatch counting.
	Metrics *metrics.Registry
	// Mirror is optional; nil disables the retained-state mirror, and
	// properties simply reset to their declared defaults on every boot.
	Mirror affordance.Mirror
}

// New builds a Runtime and its affordance store, but does not connect.
func New(cfg Config) *Runtime {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	rt := &Runtime{
		identity: cfg.Identity,
		trans:    cfg.Transport,
		codec:    cfg.Codec,
		sched:    cfg.Scheduler,
		core:     router.New(),
		reset:    cfg.Resetter,
		retry:    cfg.Retry,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
	}
	rt.store = affordance.New(rt)
	if cfg.Mirror != nil {
		rt.store.SetMirror(cfg.Mirror)
	}
	rt.fsm = newLifecycle(rt.log, map[string]func(context.Context, *fsm.Event){
		StateStopped: func(_ context.Context, _ *fsm.Event) {
			rt.trans.Disconnect()
		},
	})
	rt.trans.SetOnMessage(func(msg transport.Message) { rt.dispatch(msg) })
	rt.trans.SetOnConnectionLost(func(err error) { rt.onConnectionLost(err) })
	return rt
}

// onConnectionLost handles an ungraceful broker drop mid-run: the
// lifecycle takes the fatal disconnect transition and a soft reset is
// requested, leaving reconnection to the relaunched process. A drop
// observed outside Running means a deliberate shutdown is already underway
// and nothing more needs to happen.
func (rt *Runtime) onConnectionLost(err error) {
	rt.log.Warn("broker connection lost", "err", err)
	if fsmErr := rt.fsm.Event(context.Background(), EventDisconnect); fsmErr != nil {
		rt.log.Debug("lifecycle disconnect transition", "err", fsmErr)
		return
	}
	rt.sched.Shutdown()
	rt.reset.Reset("connection_lost")
}

// ─── domain.Runtime / affordance.Publisher ─────────────────────────────────

func (rt *Runtime) Identity() domain.Identity       { return rt.identity }
func (rt *Runtime) Transport() transport.Transport  { return rt.trans }
func (rt *Runtime) Codec() serializer.Codec         { return rt.codec }
func (rt *Runtime) Store() *affordance.Store        { return rt.store }
func (rt *Runtime) Scheduler() *scheduler.Scheduler { return rt.sched }
func (rt *Runtime) CoreRouter() *router.Router      { return rt.core }

func (rt *Runtime) GetProperty(name string) (any, bool) { return rt.store.GetProperty(name) }

func (rt *Runtime) Decode(data []byte, v any) error { return rt.codec.Decode(data, v) }

func (rt *Runtime) DefaultSetterAllowed(name string) bool { return rt.store.DefaultSetterAllowed(name) }

func (rt *Runtime) SetProperty(name string, value any, opts domain.SetOptions) error {
	err := rt.store.SetProperty(name, value, opts)
	if rt.metrics != nil {
		result := "applied"
		if err != nil {
			result = "error"
		}
		rt.metrics.PropertiesSet.WithLabelValues(result).Inc()
	}
	return err
}

func (rt *Runtime) EmitEvent(name string, payload any, opts domain.PublishOptions) error {
	err := rt.store.EmitEvent(name, payload, opts)
	if err == nil {
		rt.recordEvent(name, "model", payload)
		if rt.metrics != nil {
			rt.metrics.EventsEmitted.WithLabelValues("model").Inc()
		}
	}
	return err
}

func (rt *Runtime) EmitCoreEvent(name string, payload any, opts domain.PublishOptions) error {
	err := rt.store.EmitCoreEvent(name, payload, opts)
	if err == nil {
		rt.recordEvent(name, "core", payload)
		if rt.metrics != nil {
			rt.metrics.EventsEmitted.WithLabelValues("core").Inc()
		}
	}
	return err
}

func (rt *Runtime) recordEvent(name, namespace string, payload any) {
	rt.recentMu.Lock()
	defer rt.recentMu.Unlock()
	rt.recent = append(rt.recent, EventRecord{Name: name, Namespace: namespace, Payload: payload, At: time.Now()})
	if over := len(rt.recent) - recentEventCap; over > 0 {
		rt.recent = rt.recent[over:]
	}
}

// RecentEvents returns the most recently emitted events, newest last, for
// the debug HTTP surface. Bounded to recentEventCap entries; this is a
// diagnostic convenience, not a durable event log.
func (rt *Runtime) RecentEvents() []EventRecord {
	rt.recentMu.Lock()
	defer rt.recentMu.Unlock()
	out := make([]EventRecord, len(rt.recent))
	copy(out, rt.recent)
	return out
}

// TaskInfo exposes the scheduler's current task snapshot for the debug
// surface.
func (rt *Runtime) TaskInfo() []domain.TaskInfo { return rt.sched.TaskInfo() }

// Properties exposes the affordance store's current property snapshot for
// the debug surface.
func (rt *Runtime) Properties() []domain.Property { return rt.store.Snapshot() }

func (rt *Runtime) RequestReset(reason string) {
	rt.log.Warn("reset requested", "reason", reason)
	if err := rt.fsm.Event(context.Background(), EventStop); err != nil {
		rt.log.Debug("lifecycle stop transition", "err", err)
	}
	rt.reset.Reset(reason)
}

// RegisterCoreActions binds the built-in core action set onto rt's core
// router.
func (rt *Runtime) RegisterCoreActions(reg *coreactions.Registry) error {
	return reg.Register(rt.core)
}

// ─── Connection lifecycle ───────────────────────────────────────────────────

// Connect attaches to the broker with exponential backoff, subscribes the
// core and model action topics, publishes the retained registration
// message, and transitions the lifecycle through to Running.
func (rt *Runtime) Connect(ctx context.Context) error {
	if err := rt.fsm.Event(ctx, EventConfigure); err != nil {
		return fmt.Errorf("connector: configure: %w", err)
	}
	if err := rt.fsm.Event(ctx, EventNetworkUp); err != nil {
		return fmt.Errorf("connector: network up: %w", err)
	}

	rt.trans.SetLastWill(transport.LastWill{
		Topic:   rt.identity.LastWillTopic(),
		Payload: []byte(`{"connected":false}`),
		QoS:     1,
		Retain:  true,
	})

	if err := rt.connectWithBackoff(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnreachable, err)
	}
	if err := rt.fsm.Event(ctx, EventBrokerUp); err != nil {
		return fmt.Errorf("connector: broker up: %w", err)
	}

	if err := rt.trans.Subscribe(rt.identity.CoreActionTopic()+"/#", 1); err != nil {
		return fmt.Errorf("connector: subscribe core actions: %w", err)
	}
	if err := rt.trans.Subscribe(rt.identity.ModelActionTopic()+"/#", 1); err != nil {
		return fmt.Errorf("connector: subscribe model actions: %w", err)
	}

	if err := rt.register(); err != nil {
		return fmt.Errorf("connector: register: %w", err)
	}

	return rt.fsm.Event(ctx, EventStart)
}

func (rt *Runtime) connectWithBackoff(ctx context.Context) error {
	wait := rt.retry.BaseWait
	if wait <= 0 {
		wait = time.Second
	}
	maxWait := rt.retry.MaxWait
	if maxWait <= 0 {
		maxWait = 60 * time.Second
	}

	var lastErr error
	for attempt := 0; rt.retry.MaxTries == 0 || attempt < rt.retry.MaxTries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			wait *= 2
			if wait > maxWait {
				wait = maxWait
			}
		}

		err := rt.trans.Connect(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		rt.log.Warn("broker connect attempt failed", "attempt", attempt+1, "err", err)
	}
	if lastErr == nil {
		lastErr = domain.ErrRetriesExhausted
	}
	return lastErr
}

func (rt *Runtime) register() error {
	payload, err := rt.codec.Encode(map[string]any{
		"model":   rt.identity.Model,
		"uuid":    rt.identity.UUID,
		"version": rt.identity.Version,
		"codec":   rt.codec.Name(),
		"runtime": domain.RuntimeName,
	})
	if err != nil {
		return err
	}
	return rt.trans.Publish(rt.identity.RegistrationTopic(), payload, 1, true)
}

// Disconnect performs a clean shutdown: stop the scheduler, transition the
// lifecycle to Stopped (which disconnects the transport via the fsm
// callback), independent of whether a reset will follow.
func (rt *Runtime) Disconnect() {
	rt.sched.Shutdown()
	if err := rt.fsm.Event(context.Background(), EventStop); err != nil {
		rt.log.Debug("lifecycle stop on disconnect", "err", err)
	}
}

// State returns the lifecycle's current state, for the debug surface.
func (rt *Runtime) State() string { return rt.fsm.Current() }

// ─── Dispatch ────────────────────────────────────────────────────────────

func (rt *Runtime) dispatch(msg transport.Message) {
	rel := rt.relativeActionPath(msg.Topic)
	if rel == "" {
		return
	}

	corePrefix := domain.RuntimeName + "/"
	modelPrefix := rt.identity.Model + "/"

	var (
		handler domain.Handler
		params  []domain.Param
		ok      bool
	)

	var namespace string
	switch {
	case strings.HasPrefix(rel, corePrefix):
		namespace = "core"
		handler, params, ok = rt.core.Resolve(strings.TrimPrefix(rel, corePrefix))
	case strings.HasPrefix(rel, modelPrefix):
		namespace = "model"
		handler, params, ok = rt.store.Router().Resolve(strings.TrimPrefix(rel, modelPrefix))
	default:
		rt.log.Warn("dispatch: unrecognized action namespace", "topic", msg.Topic)
		return
	}

	if !ok {
		rt.log.Warn("dispatch: no handler registered", "topic", msg.Topic)
		return
	}

	if rt.metrics != nil {
		rt.metrics.ActionsDispatched.WithLabelValues(namespace).Inc()
	}

	if namespace == "core" {
		// Core actions can be slow (a firmware write, a full VFS walk), so
		// they run as one-shot scheduler tasks instead of on the dispatch
		// path. A repeat of the same core action before the first finishes
		// replaces it, per the scheduler's task-id semantics.
		h, p, payload := handler, params, msg.Payload
		rt.sched.TaskCreate(domain.TaskSpec{
			ID:   "core/" + rel,
			Kind: domain.TaskOneShot,
			Body: func(ctx context.Context) error {
				return h(ctx, rt, payload, p)
			},
		})
		return
	}

	if err := handler(context.Background(), rt, msg.Payload, params); err != nil {
		rt.log.Error("action handler failed", "topic", msg.Topic, "err", err)
	}
}

// relativeActionPath strips the device's base topic and "actions/" segment
// from an inbound publish, returning the remainder (e.g.
// "citylink/firmware_update" or "thermostat/set_prop/brightness"), or ""
// if topic isn't an action topic at all.
func (rt *Runtime) relativeActionPath(topic string) string {
	prefix := rt.identity.BaseTopic() + "/actions/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	return strings.TrimPrefix(topic, prefix)
}

// ─── Main loop ──────────────────────────────────────────────────────────

// Run blocks until ctx is cancelled, keeping the broker connection serviced.
// paho's own client already services its network loop on background
// goroutines, so unlike the original firmware's single-threaded
// wait_msg()/check_msg() choice, Run here just waits for shutdown, polling
// the scheduler's counters into the metrics registry at the same ~100-200ms
// cadence the original cooperative loop yielded to its task table at.
func (rt *Runtime) Run(ctx context.Context) error {
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rt.Disconnect()
			return ctx.Err()
		case <-ticker.C:
			rt.syncTaskMetrics()
		}
	}
}

func (rt *Runtime) syncTaskMetrics() {
	if rt.metrics == nil {
		return
	}
	stats := rt.sched.Stats()
	rt.metrics.TasksRunning.Set(float64(stats.Running))
	if delta := stats.Created - rt.lastTaskStats.Created; delta > 0 {
		rt.metrics.TasksCreated.Add(float64(delta))
	}
	if delta := stats.Failed - rt.lastTaskStats.Failed; delta > 0 {
		rt.metrics.TasksFailed.Add(float64(delta))
	}
	rt.lastTaskStats = stats
}

// Package affordance implements the property/event/action affordance store:
// the device's exposed state (properties), its outbound notifications
// (events), and the registration point for inbound commands (actions,
// delegated to the router). It is grounded on the original firmware's
// SSA.create_property/get_property/set_property/trigger_event methods,
// reshaped from a single-instance singleton into an instance the connector
// owns and injects.
package affordance

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/les2feup/citylink/internal/domain"
	"github.com/les2feup/citylink/internal/router"
	"github.com/les2feup/citylink/internal/serializer"
	"github.com/les2feup/citylink/internal/transport"
)

// Publisher is the subset of the connector the store needs to put bytes on
// the wire and know its own topic prefixes — kept narrow so the store can
// be tested without a full connector.
type Publisher interface {
	Identity() domain.Identity
	Transport() transport.Transport
	Codec() serializer.Codec
}

// Mirror persists the latest value of every property outside the running
// process, so a restart can repopulate state from the last known values
// instead of waiting on the broker's own retained messages to replay. The
// sqlite-backed store.DB satisfies this without either package importing
// the other.
type Mirror interface {
	PutProperty(name string, value any) error
	GetProperty(name string, v any) (bool, error)
}

type propEntry struct {
	value             any
	kind              reflect.Type
	usesDefaultSetter bool
}

// Store holds every property and event declared for this device and
// delegates action registration to an embedded router.Router.
type Store struct {
	pub    Publisher
	mirror Mirror

	mu         sync.Mutex
	properties map[string]*propEntry

	router *router.Router
}

// New builds an empty Store bound to pub for publishing.
func New(pub Publisher) *Store {
	return &Store{
		pub:        pub,
		properties: make(map[string]*propEntry),
		router:     router.New(),
	}
}

// SetMirror attaches a retained-state mirror. Nil disables mirroring, which
// is the default — a Store built with New has none until the connector
// wires one in.
func (s *Store) SetMirror(m Mirror) { s.mirror = m }

// Router exposes the underlying action router so the connector can resolve
// inbound action topics against it.
func (s *Store) Router() *router.Router { return s.router }

// RegisterAction binds handler to an action template, delegating straight
// to the embedded router.
func (s *Store) RegisterAction(template string, handler domain.Handler) error {
	return s.router.Register(template, handler)
}

// CreateProperty declares a new property with its initial value and
// publishes it retained. usesDefaultSetter marks whether the built-in
// set/{name} core action is allowed to change it directly. If a mirror is
// attached and already holds a value for name — left over from a prior
// run — that value is used in place of initial, so a restart resumes from
// its last known state rather than resetting to the declared default.
func (s *Store) CreateProperty(name string, initial any, usesDefaultSetter bool) error {
	s.mu.Lock()
	if _, exists := s.properties[name]; exists {
		s.mu.Unlock()
		return domain.ErrDuplicateProperty
	}

	value := s.restoreOrInitial(name, initial)
	s.properties[name] = &propEntry{
		value:             value,
		kind:              reflect.TypeOf(initial),
		usesDefaultSetter: usesDefaultSetter,
	}
	s.mu.Unlock()

	s.mirrorProperty(name, value)
	return s.publishProperty(name, value)
}

// restoreOrInitial asks the mirror for a previously mirrored value of the
// same type as initial, falling back to initial if none is attached, none
// is found, or it can't be decoded.
func (s *Store) restoreOrInitial(name string, initial any) any {
	if s.mirror == nil {
		return initial
	}
	ptr := reflect.New(reflect.TypeOf(initial)).Interface()
	found, err := s.mirror.GetProperty(name, ptr)
	if err != nil || !found {
		return initial
	}
	return reflect.ValueOf(ptr).Elem().Interface()
}

// mirrorProperty writes value through to the attached mirror, if any. The
// mirror is a local cache, not the source of truth, so a write failure here
// never fails the caller's operation.
func (s *Store) mirrorProperty(name string, value any) {
	if s.mirror == nil {
		return
	}
	_ = s.mirror.PutProperty(name, value)
}

// GetProperty returns a copy of a property's current value — a caller
// holding a returned map or slice can't mutate the canonical value through
// the alias.
func (s *Store) GetProperty(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.properties[name]
	if !ok {
		return nil, false
	}
	return deepCopyValue(e.value), true
}

// DefaultSetterAllowed reports whether name was created with the default
// setter enabled. Unknown names report true, so the default setter's own
// SetProperty call surfaces ErrUnknownProperty instead of a misleading
// not-settable error.
func (s *Store) DefaultSetterAllowed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.properties[name]; ok {
		return e.usesDefaultSetter
	}
	return true
}

// Snapshot returns every property's current value, for the debug surface
// and the sqlite retained-state mirror.
func (s *Store) Snapshot() []domain.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Property, 0, len(s.properties))
	for name, e := range s.properties {
		out = append(out, domain.Property{Name: name, Value: e.value, UsesDefaultSetter: e.usesDefaultSetter})
	}
	return out
}

// SetProperty validates the new value's type against the property's
// creation type, publishes the change, and only then commits it — a failed
// transport publish fails the set and leaves stored state untouched, so
// the caller can retry. When the old and new values are both nested maps
// and opts says so, the wire carries a structural diff and the diff is
// merged into stored state; otherwise the full value is published and
// stored. Setting a value equal to the one already stored is a no-op:
// nothing is republished, matching the original firmware's explicit
// prev_value != value guard.
func (s *Store) SetProperty(name string, value any, opts domain.SetOptions) error {
	s.mu.Lock()
	e, ok := s.properties[name]
	if !ok {
		s.mu.Unlock()
		return domain.ErrUnknownProperty
	}
	if reflect.TypeOf(value) != e.kind {
		s.mu.Unlock()
		return fmt.Errorf("%w: property %q wants %s, got %T", domain.ErrTypeMismatch, name, e.kind, value)
	}
	if reflect.DeepEqual(e.value, value) {
		s.mu.Unlock()
		return nil
	}
	prev := e.value
	s.mu.Unlock()

	var wire, next any
	prevMap, prevIsMap := prev.(map[string]any)
	curMap, curIsMap := value.(map[string]any)
	if opts.UseDictDiff && prevIsMap && curIsMap {
		diff := dictDiff(prevMap, curMap)
		if len(diff) == 0 {
			// Every key the new value carries already holds that value;
			// absent keys are not deletions, so there is nothing to say.
			return nil
		}
		wire = diff
		next = mergeMaps(prevMap, diff)
	} else {
		wire = value
		next = deepCopyValue(value)
	}

	if err := s.publishPropertyWith(name, wire, opts.PublishOptions); err != nil {
		return err
	}

	s.mu.Lock()
	e.value = next
	s.mu.Unlock()
	s.mirrorProperty(name, next)
	return nil
}

func (s *Store) publishProperty(name string, value any) error {
	return s.publishPropertyWith(name, value, domain.QoS1Retained())
}

func (s *Store) publishPropertyWith(name string, value any, opts domain.PublishOptions) error {
	data, err := s.pub.Codec().Encode(value)
	if err != nil {
		return fmt.Errorf("affordance: encode property %q: %w", name, err)
	}
	topic := s.pub.Identity().PropertyTopic(name)
	if err := s.pub.Transport().Publish(topic, data, opts.QoS, opts.Retain); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishFailure, err)
	}
	return nil
}

// EmitEvent validates name against reserved segments and wildcard tokens,
// then publishes payload under the device's model event namespace.
func (s *Store) EmitEvent(name string, payload any, opts domain.PublishOptions) error {
	if err := domain.ValidateEventName(s.pub.Identity(), name); err != nil {
		return err
	}
	data, err := s.pub.Codec().Encode(payload)
	if err != nil {
		return fmt.Errorf("affordance: encode event %q: %w", name, err)
	}
	topic := s.pub.Identity().EventTopic(name)
	if err := s.pub.Transport().Publish(topic, data, opts.QoS, opts.Retain); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishFailure, err)
	}
	return nil
}

// EmitCoreEvent publishes payload under the runtime's own core event
// namespace (e.g. the VFS operation report), bypassing user-name
// validation since the caller is the runtime itself.
func (s *Store) EmitCoreEvent(name string, payload any, opts domain.PublishOptions) error {
	data, err := s.pub.Codec().Encode(payload)
	if err != nil {
		return fmt.Errorf("affordance: encode core event %q: %w", name, err)
	}
	topic := s.pub.Identity().CoreEventTopic(name)
	if err := s.pub.Transport().Publish(topic, data, opts.QoS, opts.Retain); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishFailure, err)
	}
	return nil
}

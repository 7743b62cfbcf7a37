package affordance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/les2feup/citylink/internal/domain"
	"github.com/les2feup/citylink/internal/serializer"
	"github.com/les2feup/citylink/internal/transport"
)

type fakePublisher struct {
	id    domain.Identity
	trans transport.Transport
	codec serializer.Codec
}

func (f *fakePublisher) Identity() domain.Identity      { return f.id }
func (f *fakePublisher) Transport() transport.Transport { return f.trans }
func (f *fakePublisher) Codec() serializer.Codec        { return f.codec }

func newTestStore(t *testing.T) (*Store, *transport.Loopback) {
	t.Helper()
	lb := transport.NewLoopback()
	if err := lb.Connect(context.Background()); err != nil {
		t.Fatalf("connect loopback: %v", err)
	}
	pub := &fakePublisher{
		id:    domain.Identity{Model: "thermostat", UUID: "abc123", ClientID: "abc123"},
		trans: lb,
		codec: serializer.NewJSON(),
	}
	return New(pub), lb
}

func TestCreateProperty_PublishesRetained(t *testing.T) {
	s, lb := newTestStore(t)
	if err := s.CreateProperty("brightness", 50.0, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(lb.Published) != 1 {
		t.Fatalf("want 1 publish, got %d", len(lb.Published))
	}
	if lb.Published[0].Topic != "thermostat/abc123/properties/thermostat/brightness" {
		t.Fatalf("unexpected topic: %s", lb.Published[0].Topic)
	}
}

func TestCreateProperty_Duplicate(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.CreateProperty("brightness", 50.0, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.CreateProperty("brightness", 10.0, true)
	if !errors.Is(err, domain.ErrDuplicateProperty) {
		t.Fatalf("err = %v, want ErrDuplicateProperty", err)
	}
}

func TestSetProperty_TypeMismatch(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.CreateProperty("brightness", 50.0, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.SetProperty("brightness", "not-a-number", domain.DefaultSetOptions())
	if !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("err = %v, want ErrTypeMismatch", err)
	}
}

func TestSetProperty_EqualValueIsNoOp(t *testing.T) {
	s, lb := newTestStore(t)
	if err := s.CreateProperty("brightness", 50.0, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	before := len(lb.Published)
	if err := s.SetProperty("brightness", 50.0, domain.DefaultSetOptions()); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(lb.Published) != before {
		t.Fatalf("equal-value set should not publish, went from %d to %d", before, len(lb.Published))
	}
}

func TestSetProperty_ChangedValuePublishes(t *testing.T) {
	s, lb := newTestStore(t)
	if err := s.CreateProperty("brightness", 50.0, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	before := len(lb.Published)
	if err := s.SetProperty("brightness", 75.0, domain.DefaultSetOptions()); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(lb.Published) != before+1 {
		t.Fatalf("changed value should publish once, went from %d to %d", before, len(lb.Published))
	}
}

func TestSetProperty_Unknown(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.SetProperty("ghost", 1.0, domain.DefaultSetOptions())
	if !errors.Is(err, domain.ErrUnknownProperty) {
		t.Fatalf("err = %v, want ErrUnknownProperty", err)
	}
}

func TestEmitEvent_ReservedSegmentRejected(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.EmitEvent("vfs/report", map[string]any{}, domain.PublishOptions{})
	if !errors.Is(err, domain.ErrReservedEventName) {
		t.Fatalf("err = %v, want ErrReservedEventName", err)
	}
}

func TestEmitEvent_WildcardRejected(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.EmitEvent("alerts/+", map[string]any{}, domain.PublishOptions{})
	if !errors.Is(err, domain.ErrReservedEventName) {
		t.Fatalf("err = %v, want ErrReservedEventName", err)
	}
}

func TestEmitEvent_ValidPublishes(t *testing.T) {
	s, lb := newTestStore(t)
	if err := s.EmitEvent("alerts/overheat", map[string]any{"temp": 99}, domain.PublishOptions{}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(lb.Published) != 1 {
		t.Fatalf("want 1 publish, got %d", len(lb.Published))
	}
	if lb.Published[0].Topic != "thermostat/abc123/events/thermostat/alerts/overheat" {
		t.Fatalf("unexpected topic: %s", lb.Published[0].Topic)
	}
}

func TestDefaultSetterAllowed(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.CreateProperty("open", 1.0, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateProperty("sealed", 1.0, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !s.DefaultSetterAllowed("open") {
		t.Error("open should accept the default setter")
	}
	if s.DefaultSetterAllowed("sealed") {
		t.Error("sealed should refuse the default setter")
	}
	if !s.DefaultSetterAllowed("ghost") {
		t.Error("unknown names report true so the set itself surfaces the error")
	}
}

func TestSetProperty_PublishesDiffForNestedMaps(t *testing.T) {
	s, lb := newTestStore(t)
	if err := s.CreateProperty("state", map[string]any{"a": 1.0, "b": 2.0}, true); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.SetProperty("state", map[string]any{"a": 1.0, "b": 3.0}, domain.DefaultSetOptions()); err != nil {
		t.Fatalf("set: %v", err)
	}

	last := lb.Published[len(lb.Published)-1]
	if last.Topic != "thermostat/abc123/properties/thermostat/state" {
		t.Fatalf("unexpected topic: %s", last.Topic)
	}
	var wire map[string]any
	if err := json.Unmarshal(last.Payload, &wire); err != nil {
		t.Fatalf("decode wire payload: %v", err)
	}
	if len(wire) != 1 || wire["b"] != 3.0 {
		t.Fatalf("wire payload = %v, want only the changed key", wire)
	}

	v, _ := s.GetProperty("state")
	got := v.(map[string]any)
	if got["a"] != 1.0 || got["b"] != 3.0 {
		t.Fatalf("stored value = %v, want merged {a:1, b:3}", got)
	}
}

func TestSetProperty_DiffMergeKeepsAbsentKeys(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.CreateProperty("state", map[string]any{"a": 1.0, "b": 2.0}, true); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A key missing from the new value is not a deletion: the diff only
	// carries changes and additions, and the merge keeps everything else.
	if err := s.SetProperty("state", map[string]any{"b": 3.0}, domain.DefaultSetOptions()); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, _ := s.GetProperty("state")
	got := v.(map[string]any)
	if got["a"] != 1.0 || got["b"] != 3.0 {
		t.Fatalf("stored value = %v, want {a:1, b:3}", got)
	}
}

// failingTransport refuses every publish, for exercising the store's
// publish-failure contract.
type failingTransport struct {
	transport.Loopback
}

func (f *failingTransport) Publish(string, []byte, byte, bool) error {
	return errors.New("broker gone")
}

func TestSetProperty_PublishFailureLeavesStateUnchanged(t *testing.T) {
	ft := &failingTransport{}
	pub := &fakePublisher{
		id:    domain.Identity{Model: "thermostat", UUID: "abc123", ClientID: "abc123"},
		trans: ft,
		codec: serializer.NewJSON(),
	}
	s := New(pub)

	// CreateProperty's initial retained publish also fails; the property
	// still exists with its initial value.
	if err := s.CreateProperty("brightness", 10.0, true); err == nil {
		t.Fatal("expected the initial publish to fail")
	}

	err := s.SetProperty("brightness", 20.0, domain.DefaultSetOptions())
	if !errors.Is(err, domain.ErrPublishFailure) {
		t.Fatalf("err = %v, want ErrPublishFailure", err)
	}
	v, ok := s.GetProperty("brightness")
	if !ok || v != 10.0 {
		t.Fatalf("stored value = %v, want the untouched 10.0", v)
	}
}

func TestGetProperty_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.CreateProperty("state", map[string]any{"a": 1.0}, true); err != nil {
		t.Fatalf("create: %v", err)
	}

	v, _ := s.GetProperty("state")
	v.(map[string]any)["a"] = 99.0

	again, _ := s.GetProperty("state")
	if again.(map[string]any)["a"] != 1.0 {
		t.Fatal("mutating a returned value must not change the stored one")
	}
}

type fakeMirror struct {
	values map[string]any
}

func newFakeMirror() *fakeMirror { return &fakeMirror{values: make(map[string]any)} }

func (m *fakeMirror) PutProperty(name string, value any) error {
	m.values[name] = value
	return nil
}

func (m *fakeMirror) GetProperty(name string, v any) (bool, error) {
	stored, ok := m.values[name]
	if !ok {
		return false, nil
	}
	switch dst := v.(type) {
	case *float64:
		*dst = stored.(float64)
	default:
		return false, nil
	}
	return true, nil
}

func TestCreateProperty_RestoresFromMirror(t *testing.T) {
	s, _ := newTestStore(t)
	mirror := newFakeMirror()
	mirror.values["brightness"] = 80.0
	s.SetMirror(mirror)

	if err := s.CreateProperty("brightness", 50.0, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	v, ok := s.GetProperty("brightness")
	if !ok || v.(float64) != 80.0 {
		t.Fatalf("value = %v, want restored 80.0", v)
	}
}

func TestSetProperty_WritesThroughToMirror(t *testing.T) {
	s, _ := newTestStore(t)
	mirror := newFakeMirror()
	s.SetMirror(mirror)

	if err := s.CreateProperty("brightness", 50.0, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetProperty("brightness", 75.0, domain.DefaultSetOptions()); err != nil {
		t.Fatalf("set: %v", err)
	}
	if mirror.values["brightness"] != 75.0 {
		t.Fatalf("mirror value = %v, want 75.0", mirror.values["brightness"])
	}
}

func TestRegisterAction_DelegatesToRouter(t *testing.T) {
	s, _ := newTestStore(t)
	called := false
	err := s.RegisterAction("set_prop/{name}", func(_ context.Context, _ domain.Runtime, _ []byte, _ []domain.Param) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	handler, params, ok := s.Router().Resolve("set_prop/brightness")
	if !ok {
		t.Fatal("resolve failed")
	}
	if err := handler(context.Background(), nil, nil, params); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !called {
		t.Fatal("handler not invoked")
	}
}

package debug

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/les2feup/citylink/internal/connector"
	"github.com/les2feup/citylink/internal/domain"
	"github.com/les2feup/citylink/internal/platform"
	"github.com/les2feup/citylink/internal/scheduler"
	"github.com/les2feup/citylink/internal/serializer"
	"github.com/les2feup/citylink/internal/transport"
)

func newTestRuntime(t *testing.T) *connector.Runtime {
	t.Helper()
	lb := transport.NewLoopback()
	sched := scheduler.New(scheduler.DefaultConfig(), nil)
	t.Cleanup(sched.Shutdown)

	rt := connector.New(connector.Config{
		Identity:  domain.Identity{Model: "thermostat", UUID: "abc123", ClientID: "abc123"},
		Transport: lb,
		Codec:     serializer.NewJSON(),
		Scheduler: sched,
		Resetter:  platform.NewRecordingResetter(),
		Retry:     connector.RetryConfig{BaseWait: time.Millisecond, MaxWait: time.Millisecond, MaxTries: 3},
	})
	return rt
}

func TestRouter_Healthz(t *testing.T) {
	rt := newTestRuntime(t)
	srv := httptest.NewServer(Router(rt))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRouter_Properties(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.Store().CreateProperty("brightness", 10.0, true); err != nil {
		t.Fatalf("create property: %v", err)
	}

	srv := httptest.NewServer(Router(rt))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/properties")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRouter_TasksAndRecentEvents(t *testing.T) {
	rt := newTestRuntime(t)
	srv := httptest.NewServer(Router(rt))
	defer srv.Close()

	for _, path := range []string{"/tasks", "/events/recent"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

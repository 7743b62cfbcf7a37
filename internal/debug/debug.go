// Package debug exposes a loopback-only HTTP surface for local inspection
// of a running device during development: current property values, the
// most recent events, the scheduler's task table, and a liveness probe. It
// carries no broker traffic and is never required for correctness — a
// device with debug.enabled=false in config behaves identically over MQTT.
// Grounded on the teacher's chi wiring (RequestID/Recoverer/Timeout
// middleware stack), narrowed to four read-only routes.
package debug

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/les2feup/citylink/internal/connector"
)

// Router builds the chi handler for rt's introspection routes.
func Router(rt *connector.Runtime) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]string{"state": rt.State()})
	})

	r.Get("/properties", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, rt.Properties())
	})

	r.Get("/events/recent", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, rt.RecentEvents())
	})

	r.Get("/tasks", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, rt.TaskInfo())
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Package metrics exposes the runtime's Prometheus gauges and counters:
// scheduler task activity, action dispatch counts, and property set
// counts. The original firmware had no equivalent — observability on a
// microcontroller meant a UART log line — so this is pure ambient-stack
// enrichment for the Go deployment, grounded on the teacher's use of
// prometheus/client_golang elsewhere in its stack.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric the runtime exports.
type Registry struct {
	TasksCreated      prometheus.Counter
	TasksFailed       prometheus.Counter
	TasksRunning      prometheus.Gauge
	ActionsDispatched *prometheus.CounterVec
	PropertiesSet     *prometheus.CounterVec
	EventsEmitted     *prometheus.CounterVec
}

// New registers every metric against reg and returns the bound Registry.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		TasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citylink",
			Subsystem: "scheduler",
			Name:      "tasks_created_total",
			Help:      "Total number of tasks created.",
		}),
		TasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citylink",
			Subsystem: "scheduler",
			Name:      "tasks_failed_total",
			Help:      "Total number of task bodies that returned an error.",
		}),
		TasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "citylink",
			Subsystem: "scheduler",
			Name:      "tasks_running",
			Help:      "Number of tasks currently registered with the scheduler.",
		}),
		ActionsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citylink",
			Subsystem: "router",
			Name:      "actions_dispatched_total",
			Help:      "Total number of action invocations, by namespace (core or model).",
		}, []string{"namespace"}),
		PropertiesSet: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citylink",
			Subsystem: "affordance",
			Name:      "properties_set_total",
			Help:      "Total number of property set calls, by result (applied or error).",
		}, []string{"result"}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citylink",
			Subsystem: "affordance",
			Name:      "events_emitted_total",
			Help:      "Total number of events emitted, by namespace (core or model).",
		}, []string{"namespace"}),
	}

	reg.MustRegister(m.TasksCreated, m.TasksFailed, m.TasksRunning, m.ActionsDispatched, m.PropertiesSet, m.EventsEmitted)
	return m
}

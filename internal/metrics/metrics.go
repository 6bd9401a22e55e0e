// Package metrics tracks hook-dispatch latency and event-log volume as
// Prometheus collectors, exposed only via `macf debug metrics` text
// dump rather than an HTTP /metrics endpoint — the hook runtime is a
// short-lived CLI process per invocation, not a long-running server, so
// there is nothing for promhttp to serve continuously. Adapted from the
// teacher pack's rcourtman-Pulse cmd/pulse-sensor-proxy/metrics.go:
// same registry-per-process, MustRegister-at-construction, nil-receiver-
// safe recording methods shape, retargeted from RPC/SSH proxy metrics
// to hook latency and event-log counters.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/expfmt"
)

// Registry bundles every collector MACF's hook runtime and CLI record
// against, mirroring Pulse's ProxyMetrics bundle.
type Registry struct {
	hookLatency     *prometheus.HistogramVec
	hookOutcomes    *prometheus.CounterVec
	eventsAppended  *prometheus.CounterVec
	searchQueries   *prometheus.CounterVec
	searchLatency   prometheus.Histogram
	grantDecisions  *prometheus.CounterVec
	registry        *prometheus.Registry
}

// New creates and registers every collector. Each process (hook
// invocation or CLI command) gets its own Registry; nothing is shared
// across processes — metrics are dumped, not scraped.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		hookLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macf_hook_latency_seconds",
				Help:    "Hook handler latency by event name.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.15, 0.25, 0.5},
			},
			[]string{"event"},
		),
		hookOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macf_hook_outcomes_total",
				Help: "Hook invocations by event and outcome (ok, error, budget_exceeded).",
			},
			[]string{"event", "outcome"},
		),
		eventsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macf_events_appended_total",
				Help: "Events appended to the event log by event name.",
			},
			[]string{"event_name"},
		),
		searchQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macf_search_queries_total",
				Help: "Search recommend() calls by path (socket, in_process, fallback).",
			},
			[]string{"path"},
		),
		searchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "macf_search_latency_seconds",
				Help:    "End-to-end recommend() latency.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		grantDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macf_grant_decisions_total",
				Help: "Grant-gate decisions by tool and result (allowed, denied, consumed).",
			},
			[]string{"tool", "result"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.hookLatency,
		m.hookOutcomes,
		m.eventsAppended,
		m.searchQueries,
		m.searchLatency,
		m.grantDecisions,
	)

	return m
}

// ObserveHookLatency records how long a hook handler took to run.
func (m *Registry) ObserveHookLatency(event string, seconds float64) {
	if m == nil {
		return
	}
	m.hookLatency.WithLabelValues(event).Observe(seconds)
}

// RecordHookOutcome tallies a hook invocation's terminal outcome.
func (m *Registry) RecordHookOutcome(event, outcome string) {
	if m == nil {
		return
	}
	m.hookOutcomes.WithLabelValues(event, outcome).Inc()
}

// RecordEventAppended tallies an event log append by event name.
func (m *Registry) RecordEventAppended(eventName string) {
	if m == nil {
		return
	}
	m.eventsAppended.WithLabelValues(eventName).Inc()
}

// RecordSearchQuery tallies a recommend() call by the path it took.
func (m *Registry) RecordSearchQuery(path string) {
	if m == nil {
		return
	}
	m.searchQueries.WithLabelValues(path).Inc()
}

// ObserveSearchLatency records end-to-end recommend() latency.
func (m *Registry) ObserveSearchLatency(seconds float64) {
	if m == nil {
		return
	}
	m.searchLatency.Observe(seconds)
}

// RecordGrantDecision tallies a grant-gate decision.
func (m *Registry) RecordGrantDecision(tool, result string) {
	if m == nil {
		return
	}
	m.grantDecisions.WithLabelValues(tool, result).Inc()
}

// DumpText renders every collector in Prometheus text exposition format,
// for `macf debug metrics` to print directly — there is no HTTP server
// to scrape, since hook processes are short-lived.
func (m *Registry) DumpText() (string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	enc := expfmt.NewEncoder(&b, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

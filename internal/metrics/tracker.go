// Package metrics records per-process counters for alert loading, provider
// fetches and research queries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wwatcher"

// Tracker owns a private Prometheus registry. A nil *Tracker is valid and
// records nothing, so components can take one unconditionally.
type Tracker struct {
	registry *prometheus.Registry

	alertsLoaded    prometheus.Gauge
	skippedLines    *prometheus.GaugeVec
	fetches         *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	researchQueries *prometheus.CounterVec
	commands        *prometheus.CounterVec
}

// NewTracker creates a Tracker with all collectors registered.
func NewTracker() *Tracker {
	t := &Tracker{
		registry: prometheus.NewRegistry(),
		alertsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_loaded",
			Help:      "Alerts parsed from the history log on the last load.",
		}),
		skippedLines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "skipped_lines",
			Help:      "History log lines skipped on the last load, by reason.",
		}, []string{"reason"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fetches_total",
			Help:      "Structured data fetches, by provider and outcome.",
		}, []string{"provider", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_duration_seconds",
			Help:      "Latency of structured data fetches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		researchQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_queries_total",
			Help:      "Research assistant queries, by outcome.",
		}, []string{"status"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "CLI command invocations, by command and result.",
		}, []string{"command", "result"}),
	}

	t.registry.MustRegister(
		t.alertsLoaded,
		t.skippedLines,
		t.fetches,
		t.fetchDuration,
		t.researchQueries,
		t.commands,
	)
	return t
}

// Registry exposes the underlying registry.
func (t *Tracker) Registry() *prometheus.Registry {
	if t == nil {
		return nil
	}
	return t.registry
}

// SetAlertsLoaded records the size of the loaded history.
func (t *Tracker) SetAlertsLoaded(n int) {
	if t == nil {
		return
	}
	t.alertsLoaded.Set(float64(n))
}

// SetSkipped records how many lines were skipped for reason.
func (t *Tracker) SetSkipped(reason string, n int) {
	if t == nil {
		return
	}
	t.skippedLines.WithLabelValues(reason).Set(float64(n))
}

// ObserveFetch counts one provider fetch and its latency.
func (t *Tracker) ObserveFetch(provider, status string, d time.Duration) {
	if t == nil {
		return
	}
	t.fetches.WithLabelValues(provider, status).Inc()
	t.fetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// IncResearchQuery counts one research query with its outcome.
func (t *Tracker) IncResearchQuery(status string) {
	if t == nil {
		return
	}
	t.researchQueries.WithLabelValues(status).Inc()
}

// IncCommand counts one CLI command invocation.
func (t *Tracker) IncCommand(command, result string) {
	if t == nil {
		return
	}
	t.commands.WithLabelValues(command, result).Inc()
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically, for the node exporter textfile collector.
func (t *Tracker) WriteTextfile(path string) error {
	if t == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, t.registry)
}

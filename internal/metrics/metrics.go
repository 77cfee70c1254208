// Package metrics holds the Prometheus collectors of the live scoring service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "live_scoring"

// Metrics owns a private registry so tests can build as many as they like
type Metrics struct {
	registry *prometheus.Registry

	recalculations  *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	attempts        *prometheus.HistogramVec
	recalcDuration  *prometheus.HistogramVec
	subscriptions   prometheus.Gauge
	hubDelivered    prometheus.Counter
	hubCoalesced    prometheus.Counter
	hubDropped      prometheus.Counter
	wsClients       prometheus.Gauge
	streamMessages  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	archivedInnings prometheus.Counter
	archiveFailures prometheus.Counter
}

// New creates and registers every collector
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalculations_total",
			Help:      "Innings mutations by operation and outcome.",
		}, []string{"op", "result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Conditional writes rejected because another writer committed first.",
		}, []string{"op"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_attempts",
			Help:      "Attempts needed per committed mutation.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}, []string{"op"}),
		recalcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recalculation_duration_seconds",
			Help:      "Wall time of a mutation including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_subscriptions",
			Help:      "Active innings subscriptions.",
		}),
		hubDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_deliveries_total",
			Help:      "States handed to listeners.",
		}),
		hubCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_coalesced_total",
			Help:      "States replaced in a mailbox before the listener saw them.",
		}),
		hubDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_stale_dropped_total",
			Help:      "Publications ignored because the subscriber already had a newer version.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
		streamMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_stream_messages_total",
			Help:      "Change stream entries read, by outcome.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		archivedInnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_innings_total",
			Help:      "Innings copied to the archive.",
		}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_failures_total",
			Help:      "Archive writes that failed.",
		}),
	}

	reg.MustRegister(
		m.recalculations,
		m.conflicts,
		m.attempts,
		m.recalcDuration,
		m.subscriptions,
		m.hubDelivered,
		m.hubCoalesced,
		m.hubDropped,
		m.wsClients,
		m.streamMessages,
		m.httpRequests,
		m.httpDuration,
		m.archivedInnings,
		m.archiveFailures,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveMutation records the outcome of one engine operation
func (m *Metrics) ObserveMutation(op, result string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recalculations.WithLabelValues(op, result).Inc()
	m.recalcDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if attempts > 0 {
		m.attempts.WithLabelValues(op).Observe(float64(attempts))
	}
}

// IncConflict records a rejected conditional write
func (m *Metrics) IncConflict(op string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(op).Inc()
}

// AddSubscriptions moves the active subscription gauge by delta
func (m *Metrics) AddSubscriptions(delta int) {
	if m == nil {
		return
	}
	m.subscriptions.Add(float64(delta))
}

// IncDelivered records a state handed to a listener
func (m *Metrics) IncDelivered() {
	if m == nil {
		return
	}
	m.hubDelivered.Inc()
}

// IncCoalesced records a mailbox overwrite
func (m *Metrics) IncCoalesced() {
	if m == nil {
		return
	}
	m.hubCoalesced.Inc()
}

// IncStaleDropped records a publication older than what the subscriber holds
func (m *Metrics) IncStaleDropped() {
	if m == nil {
		return
	}
	m.hubDropped.Inc()
}

// AddWSClients moves the connected client gauge by delta
func (m *Metrics) AddWSClients(delta int) {
	if m == nil {
		return
	}
	m.wsClients.Add(float64(delta))
}

// IncStreamMessage records one change stream entry by outcome
func (m *Metrics) IncStreamMessage(result string) {
	if m == nil {
		return
	}
	m.streamMessages.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveArchive records an archive write
func (m *Metrics) ObserveArchive(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.archiveFailures.Inc()
		return
	}
	m.archivedInnings.Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

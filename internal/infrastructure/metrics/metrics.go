package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "lexmatch"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer    prometheus.Gatherer
	transitions *prometheus.CounterVec
	conflicts   prometheus.Counter
	syncs       *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and exposes g on /metrics
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_transitions_total",
			Help:      "Persisted contract transitions by event and source.",
		}, []string{"event", "source"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_write_conflicts_total",
			Help:      "Optimistic concurrency conflicts on contract writes.",
		}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "esign_sync_total",
			Help:      "Provider synchronisations by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.transitions, m.conflicts, m.syncs, m.httpLatency)
	return m
}

func (m *Metrics) ObserveTransition(event, source string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, source).Inc()
}

func (m *Metrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) ObserveSync(trigger, outcome string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Push sends the registry to a Prometheus Pushgateway under job, replacing
// the previous push of that job. Used by short-lived commands.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || m.gatherer == nil {
		return nil
	}
	return push.New(url, job).Gatherer(m.gatherer).PushContext(ctx)
}

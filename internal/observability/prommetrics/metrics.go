// Package prommetrics implements the observability.Metrics interface on top
// of the Prometheus client library. Metric names follow Prometheus naming
// conventions with the service name as a prefix; counters and histograms
// are registered lazily on first use.
package prommetrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jchook/retrace/internal/observability"
)

// Metrics implements observability.Metrics using a Prometheus registry.
type Metrics struct {
	mu          sync.Mutex
	serviceName string
	registry    *prometheus.Registry
	baseTags    map[string]string

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// New creates a Metrics instance backed by its own registry. The registry
// is exposed so the caller can serve it via promhttp.
func New(serviceName string) *Metrics {
	return &Metrics{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),
		counters:    make(map[string]*prometheus.CounterVec),
		histograms:  make(map[string]*prometheus.HistogramVec),
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	tags = m.mergeTags(tags)
	keys, values := splitTags(tags)

	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: m.metricName(name) + "_total",
			Help: "Counter " + name,
		}, keys)
		m.registry.MustRegister(vec)
		m.counters[name] = vec
	}
	m.mu.Unlock()

	vec.WithLabelValues(values...).Inc()
}

func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	tags = m.mergeTags(tags)
	keys, values := splitTags(tags)

	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    m.metricName(name),
			Help:    "Histogram " + name,
			Buckets: prometheus.DefBuckets,
		}, keys)
		m.registry.MustRegister(vec)
		m.histograms[name] = vec
	}
	m.mu.Unlock()

	vec.WithLabelValues(values...).Observe(value)
}

// WithTags returns a Metrics view that applies the given tags to every
// sample. The underlying registry and metric vectors are shared.
func (m *Metrics) WithTags(tags map[string]string) observability.Metrics {
	merged := make(map[string]string, len(m.baseTags)+len(tags))
	for k, v := range m.baseTags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return &Metrics{
		serviceName: m.serviceName,
		registry:    m.registry,
		baseTags:    merged,
		counters:    m.counters,
		histograms:  m.histograms,
	}
}

func (m *Metrics) mergeTags(tags map[string]string) map[string]string {
	if len(m.baseTags) == 0 {
		return tags
	}
	merged := make(map[string]string, len(m.baseTags)+len(tags))
	for k, v := range m.baseTags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return merged
}

// metricName converts dotted metric names to Prometheus-safe snake case,
// prefixed with the service name.
func (m *Metrics) metricName(name string) string {
	safe := strings.NewReplacer(".", "_", "-", "_").Replace(name)
	return m.serviceName + "_" + safe
}

// splitTags returns sorted label keys and their values in matching order.
// Sorting keeps the label set stable for a given metric name.
func splitTags(tags map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = tags[k]
	}
	return keys, values
}

// Package prometheusadapters implements eventstore.MetricsCollector using
// github.com/prometheus/client_golang, as an alternative to the
// OpenTelemetry-backed collector in eventstore/oteladapters.
package prometheusadapters

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/occurrent-go/occurrent/eventstore"
)

// MetricsCollector implements eventstore.MetricsCollector and
// eventstore.ContextualMetricsCollector on top of Prometheus counter,
// histogram, and gauge vectors. Since the eventstore interfaces pass an
// arbitrary label map per call rather than a fixed label schema, vectors
// are created lazily, keyed by metric name plus the sorted set of label
// keys seen for it — every call with that same key set shares one vector,
// as Prometheus requires a stable label schema per descriptor.
type MetricsCollector struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// Option configures a MetricsCollector.
type Option func(*MetricsCollector)

// WithNamespace sets the Prometheus namespace prefix for every metric.
func WithNamespace(namespace string) Option {
	return func(m *MetricsCollector) { m.namespace = namespace }
}

// WithSubsystem sets the Prometheus subsystem for every metric.
func WithSubsystem(subsystem string) Option {
	return func(m *MetricsCollector) { m.subsystem = subsystem }
}

// WithRegisterer registers every lazily-created vector with registry
// instead of leaving registration to the caller.
func WithRegisterer(registry prometheus.Registerer) Option {
	return func(m *MetricsCollector) { m.registry = registry }
}

// NewMetricsCollector creates a Prometheus-backed collector. Namespace
// defaults to "occurrent".
func NewMetricsCollector(opts ...Option) *MetricsCollector {
	m := &MetricsCollector{
		namespace:  "occurrent",
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	m.recordDuration(metricName, duration, labels)
}

func (m *MetricsCollector) RecordDurationContext(_ context.Context, metricName string, duration time.Duration, labels map[string]string) {
	m.recordDuration(metricName, duration, labels)
}

func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	m.incrementCounter(metricName, labels)
}

func (m *MetricsCollector) IncrementCounterContext(_ context.Context, metricName string, labels map[string]string) {
	m.incrementCounter(metricName, labels)
}

func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	m.recordValue(metricName, value, labels)
}

func (m *MetricsCollector) RecordValueContext(_ context.Context, metricName string, value float64, labels map[string]string) {
	m.recordValue(metricName, value, labels)
}

func (m *MetricsCollector) recordDuration(metricName string, duration time.Duration, labels map[string]string) {
	keys, values := sortedLabels(labels)
	histogram := m.getOrCreateHistogram(metricName, keys)
	histogram.WithLabelValues(values...).Observe(duration.Seconds())
}

func (m *MetricsCollector) incrementCounter(metricName string, labels map[string]string) {
	keys, values := sortedLabels(labels)
	counter := m.getOrCreateCounter(metricName, keys)
	counter.WithLabelValues(values...).Inc()
}

func (m *MetricsCollector) recordValue(metricName string, value float64, labels map[string]string) {
	keys, values := sortedLabels(labels)
	gauge := m.getOrCreateGauge(metricName, keys)
	gauge.WithLabelValues(values...).Set(value)
}

func (m *MetricsCollector) getOrCreateCounter(name string, labelKeys []string) *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	cacheKey := vecCacheKey(name, labelKeys)
	if vec, exists := m.counters[cacheKey]; exists {
		return vec
	}

	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      "occurrent " + name + " counter",
		},
		labelKeys,
	)

	m.register(vec)
	m.counters[cacheKey] = vec

	return vec
}

func (m *MetricsCollector) getOrCreateHistogram(name string, labelKeys []string) *prometheus.HistogramVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	cacheKey := vecCacheKey(name, labelKeys)
	if vec, exists := m.histograms[cacheKey]; exists {
		return vec
	}

	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      "occurrent " + name + " duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		labelKeys,
	)

	m.register(vec)
	m.histograms[cacheKey] = vec

	return vec
}

func (m *MetricsCollector) getOrCreateGauge(name string, labelKeys []string) *prometheus.GaugeVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	cacheKey := vecCacheKey(name, labelKeys)
	if vec, exists := m.gauges[cacheKey]; exists {
		return vec
	}

	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      "occurrent " + name + " current value",
		},
		labelKeys,
	)

	m.register(vec)
	m.gauges[cacheKey] = vec

	return vec
}

func (m *MetricsCollector) register(collector prometheus.Collector) {
	if m.registry == nil {
		return
	}

	// Register's error is ignored. The registry rejects a vector whose name
	// is already registered under a different label key set, so such a
	// vector is cached and updated here but not exported through m.registry.
	_ = m.registry.Register(collector)
}

func vecCacheKey(name string, labelKeys []string) string {
	return name + "|" + strings.Join(labelKeys, ",")
}

func sortedLabels(labels map[string]string) (keys, values []string) {
	keys = make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	values = make([]string, len(keys))
	for i, k := range keys {
		values[i] = labels[k]
	}

	return keys, values
}

// Ensure MetricsCollector implements eventstore.MetricsCollector and
// eventstore.ContextualMetricsCollector.
var (
	_ eventstore.MetricsCollector           = (*MetricsCollector)(nil)
	_ eventstore.ContextualMetricsCollector = (*MetricsCollector)(nil)
)

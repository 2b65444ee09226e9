package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Coverage metrics
	BundlesConverted   *prometheus.CounterVec
	RangesDropped      prometheus.Counter
	Conversions        prometheus.Counter
	ConversionDuration prometheus.Histogram

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// Browser metrics
	ConsoleMessages *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the health endpoint
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for JSON APIs
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	Conversions     int64   `json:"conversions"`
	BundlesMapped   int64   `json:"bundles_mapped"`
	BundlesUnmapped int64   `json:"bundles_unmapped"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics collector on its own registry, so several
// collectors can coexist in one process (tests, CLI conversions).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ottr_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ottr_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ottr_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ottr_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Coverage metrics
		BundlesConverted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ottr_coverage_bundles_total",
				Help: "Total number of bundles converted, by whether a source map was used",
			},
			[]string{"source_mapped"},
		),
		RangesDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ottr_coverage_ranges_dropped_total",
				Help: "Total number of ranges dropped because they could not be source mapped",
			},
		),
		Conversions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ottr_coverage_conversions_total",
				Help: "Total number of coverage conversions",
			},
		),
		ConversionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ottr_coverage_conversion_duration_seconds",
				Help:    "Coverage conversion duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		// Session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ottr_sessions_active",
				Help: "Number of test sessions still running",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ottr_sessions_total",
				Help: "Total number of test sessions created",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ottr_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ottr_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// Browser metrics
		ConsoleMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ottr_console_messages_total",
				Help: "Total number of browser console messages",
			},
			[]string{"level"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ottr_uptime_seconds",
			Help: "Uptime in seconds",
		},
		m.uptime,
	)

	return m
}

// Registry returns the registry all collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) uptime() float64 {
	return time.Since(m.startTime).Seconds()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ObserveBundle records one converted bundle.
func (m *Metrics) ObserveBundle(sourceMapped bool, droppedRanges int) {
	label := "false"
	if sourceMapped {
		label = "true"
	}
	m.BundlesConverted.WithLabelValues(label).Inc()
	if droppedRanges > 0 {
		m.RangesDropped.Add(float64(droppedRanges))
	}

	m.mu.Lock()
	if sourceMapped {
		m.snapshot.BundlesMapped++
	} else {
		m.snapshot.BundlesUnmapped++
	}
	m.mu.Unlock()
}

// ObserveConversion records one finished conversion.
func (m *Metrics) ObserveConversion(bundles int, elapsed time.Duration) {
	m.Conversions.Inc()
	m.ConversionDuration.Observe(elapsed.Seconds())

	m.mu.Lock()
	m.snapshot.Conversions++
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordConsoleMessage records a browser console call
func (m *Metrics) RecordConsoleMessage(level string) {
	m.ConsoleMessages.WithLabelValues(level).Inc()
}

// SetSessionsActive sets the number of running sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// IncSessionsTotal increments the sessions created counter
func (m *Metrics) IncSessionsTotal() {
	m.SessionsTotal.Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns a copy of the current values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()
	s.UptimeSeconds = m.uptime()
	return s
}

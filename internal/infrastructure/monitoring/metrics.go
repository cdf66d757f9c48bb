package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// Every Record method is safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Kernel metrics
	PlaceLoads        *prometheus.CounterVec
	PlaceLoadDuration *prometheus.HistogramVec
	ReloadEvents      *prometheus.CounterVec
	StartHooks        *prometheus.CounterVec
	ModuleStops       *prometheus.CounterVec

	// Dispatch metrics
	DispatchCalls    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current counter values for the JSON health endpoint
type Snapshot struct {
	TotalRequests int64 `json:"total_requests"`
	TotalErrors   int64 `json:"total_errors"`
	Calls         int64 `json:"calls"`
	FailedCalls   int64 `json:"failed_calls"`
	Reloads       int64 `json:"reloads"`
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apphost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		PlaceLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_place_loads_total",
				Help: "Total number of place loads",
			},
			[]string{"place", "status"},
		),
		PlaceLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apphost_place_load_duration_seconds",
				Help:    "Place load duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"place"},
		),
		ReloadEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_reload_events_total",
				Help: "Filesystem events routed to places",
			},
			[]string{"place", "op"},
		),
		StartHooks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_start_hooks_total",
				Help: "Start hooks executed",
			},
			[]string{"status"},
		),
		ModuleStops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_module_stops_total",
				Help: "Module stop hooks executed during shutdown",
			},
			[]string{"place", "status"},
		),

		DispatchCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_dispatch_calls_total",
				Help: "Procedure calls by interface and method",
			},
			[]string{"interface", "method", "status"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apphost_dispatch_duration_seconds",
				Help:    "Procedure call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"interface", "method"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "apphost_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "apphost_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordPlaceLoad records one place load attempt
func (m *Metrics) RecordPlaceLoad(place string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.PlaceLoads.WithLabelValues(place, status(err)).Inc()
	m.PlaceLoadDuration.WithLabelValues(place).Observe(duration.Seconds())
}

// RecordReload records a filesystem event routed to a place
func (m *Metrics) RecordReload(place, op string) {
	if m == nil {
		return
	}
	m.ReloadEvents.WithLabelValues(place, op).Inc()

	m.mu.Lock()
	m.snapshot.Reloads++
	m.mu.Unlock()
}

// RecordStartHook records a start hook outcome
func (m *Metrics) RecordStartHook(err error) {
	if m == nil {
		return
	}
	m.StartHooks.WithLabelValues(status(err)).Inc()
}

// RecordModuleStop records a module stop outcome
func (m *Metrics) RecordModuleStop(place string, err error) {
	if m == nil {
		return
	}
	m.ModuleStops.WithLabelValues(place, status(err)).Inc()
}

// RecordDispatch records a procedure call
func (m *Metrics) RecordDispatch(iface, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DispatchCalls.WithLabelValues(iface, method, status).Inc()
	m.DispatchDuration.WithLabelValues(iface, method).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Calls++
	if status != "ok" {
		m.snapshot.FailedCalls++
	}
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns a copy of the current counters
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// UptimeDuration returns time since the collector was created
func (m *Metrics) UptimeDuration() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

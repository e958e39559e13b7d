package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the collectors. Each instance owns its registry so tests can build
// as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// flat store writes
	storeWritesTotal   *prometheus.CounterVec
	storeWriteDuration *prometheus.HistogramVec

	// pollers
	pollCyclesTotal   *prometheus.CounterVec
	pollImportedTotal *prometheus.CounterVec

	notificationsTotal *prometheus.CounterVec

	// 系统指标
	systemMemoryUsage *prometheus.GaugeVec
	systemCPUUsage    prometheus.Gauge
	dataDirUsage      prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		storeWritesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatstore_writes_total",
				Help: "Table and document writes by operation and result",
			},
			[]string{"table", "op", "result"},
		),
		storeWriteDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flatstore_write_duration_seconds",
				Help:    "Time spent holding a table lock for a write",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"table", "op"},
		),

		pollCyclesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poller_cycles_total",
				Help: "Poll cycles by poller and result",
			},
			[]string{"poller", "result"},
		),
		pollImportedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poller_imported_total",
				Help: "Remote records imported into a local table",
			},
			[]string{"poller"},
		),

		notificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_published_total",
				Help: "Notifications appended per scope",
			},
			[]string{"scope"},
		),

		systemMemoryUsage: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_memory_usage_bytes",
				Help: "System memory usage in bytes",
			},
			[]string{"type"},
		),
		systemCPUUsage: f.NewGauge(prometheus.GaugeOpts{
			Name: "system_cpu_usage_percent",
			Help: "System CPU usage percentage",
		}),
		dataDirUsage: f.NewGauge(prometheus.GaugeOpts{
			Name: "data_dir_disk_usage_percent",
			Help: "Disk usage of the volume holding the data directory",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest observes one finished request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveWrite records one flat store write.
func (m *Metrics) ObserveWrite(table, op string, d time.Duration, err error) {
	m.storeWritesTotal.WithLabelValues(table, op, result(err)).Inc()
	m.storeWriteDuration.WithLabelValues(table, op).Observe(d.Seconds())
}

// RecordPollCycle counts one poll cycle and how many rows it imported.
func (m *Metrics) RecordPollCycle(poller string, imported int, err error) {
	m.pollCyclesTotal.WithLabelValues(poller, result(err)).Inc()
	if imported > 0 {
		m.pollImportedTotal.WithLabelValues(poller).Add(float64(imported))
	}
}

func (m *Metrics) RecordNotification(scope string) {
	m.notificationsTotal.WithLabelValues(scope).Inc()
}

// SetSystemStats copies a snapshot into the gauges.
func (m *Metrics) SetSystemStats(s *SystemStats) {
	if s == nil {
		return
	}
	m.systemMemoryUsage.WithLabelValues("used").Set(float64(s.Memory.Used))
	m.systemMemoryUsage.WithLabelValues("available").Set(float64(s.Memory.Available))
	m.systemCPUUsage.Set(s.CPU.UsagePercent)
	m.dataDirUsage.Set(s.Disk.UsagePercent)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Package metrics provides Prometheus metrics for editor sessions and the
// multiplayer server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	PresenceEnters    prometheus.Counter
	PresenceExits     prometheus.Counter
	PresenceCancelled prometheus.Counter
	FileEdits         prometheus.Counter
	ThemeSyncWrites   prometheus.Counter
	StoreConnections  *prometheus.CounterVec
	FilesImported     prometheus.Counter
	ActiveConnections prometheus.Gauge
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PresenceEnters: f.NewCounter(prometheus.CounterOpts{
			Name: "scenyx_presence_enters_total",
			Help: "Enter signals emitted after the presence quiet period",
		}),
		PresenceExits: f.NewCounter(prometheus.CounterOpts{
			Name: "scenyx_presence_exits_total",
			Help: "Exit signals emitted on presence teardown",
		}),
		PresenceCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "scenyx_presence_cancelled_total",
			Help: "Presence activations torn down before the quiet period elapsed",
		}),
		FileEdits: f.NewCounter(prometheus.CounterOpts{
			Name: "scenyx_file_edits_total",
			Help: "Edit records written for user-sourced document changes",
		}),
		ThemeSyncWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "scenyx_theme_sync_writes_total",
			Help: "Session state writes issued by the theme reconciler",
		}),
		StoreConnections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scenyx_store_connections_total",
			Help: "Remote store connection attempts by result",
		}, []string{"result"}),
		FilesImported: f.NewCounter(prometheus.CounterOpts{
			Name: "scenyx_files_imported_total",
			Help: "Files created from dropped native documents",
		}),
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "scenyx_ws_active_connections",
			Help: "Open multiplayer websocket connections",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scenyx_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scenyx_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) PresenceEntered() {
	if m != nil {
		m.PresenceEnters.Inc()
	}
}

func (m *Metrics) PresenceExited() {
	if m != nil {
		m.PresenceExits.Inc()
	}
}

func (m *Metrics) PresenceCanceled() {
	if m != nil {
		m.PresenceCancelled.Inc()
	}
}

func (m *Metrics) FileEdited() {
	if m != nil {
		m.FileEdits.Inc()
	}
}

func (m *Metrics) ThemeSynced() {
	if m != nil {
		m.ThemeSyncWrites.Inc()
	}
}

// StoreConnected records a connection attempt; result is "ok" or "error".
func (m *Metrics) StoreConnected(result string) {
	if m != nil {
		m.StoreConnections.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) FilesCreated(n int) {
	if m != nil {
		m.FilesImported.Add(float64(n))
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.ActiveConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.ActiveConnections.Dec()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and durations. path is the route
// template, not the raw URL, to keep label cardinality bounded.
func (m *Metrics) Middleware(path string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the collectors of gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Package metrics owns the Prometheus collectors for the HTTP surface,
// catalog ingestion, position resolution and the scene stream.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satview_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satview_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	groupFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satview_group_fetches_total",
			Help: "Element-set group fetches by outcome.",
		},
		[]string{"outcome"},
	)

	groupFetchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satview_group_fetch_duration_seconds",
			Help:    "Time to fetch and parse one element-set group.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	recordsParsedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satview_records_parsed_total",
			Help: "Element sets accepted or skipped while parsing, by group.",
		},
		[]string{"group", "result"},
	)

	catalogRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satview_catalog_records",
			Help: "Catalog record counts by state (total, active, visible).",
		},
		[]string{"state"},
	)

	startupProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satview_startup_progress_percent",
			Help: "Startup pipeline progress, 0 to 100.",
		},
	)

	resolvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satview_position_resolves_total",
			Help: "Position resolutions by outcome (fix, no_fix).",
		},
		[]string{"outcome"},
	)

	frameSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satview_frame_resolve_duration_seconds",
			Help:    "Time to resolve every proxy position for one frame.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	frameMisses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satview_frame_no_fix",
			Help: "Proxies without a position fix in the last frame.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satview_stream_connections_total",
			Help: "Scene stream connection events (connect, disconnect).",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satview_streams_active",
			Help: "Currently open scene streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satview_stream_errors_total",
			Help: "Scene stream errors by reason.",
		},
		[]string{"reason"},
	)

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satview_stream_messages_total",
			Help: "Scene stream messages sent, by type.",
		},
		[]string{"type"},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satview_stream_bytes_total",
			Help: "Bytes written to scene streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		groupFetchesTotal,
		groupFetchSeconds,
		recordsParsedTotal,
		catalogRecords,
		startupProgress,
		resolvesTotal,
		frameSeconds,
		frameMisses,
		streamConnectionsTotal,
		streamsActive,
		streamErrorsTotal,
		streamMessagesTotal,
		streamBytesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordGroupFetch(outcome string, d time.Duration) {
	groupFetchesTotal.WithLabelValues(outcome).Inc()
	groupFetchSeconds.Observe(d.Seconds())
}

func RecordParse(group string, accepted, skipped int) {
	recordsParsedTotal.WithLabelValues(group, "accepted").Add(float64(accepted))
	recordsParsedTotal.WithLabelValues(group, "skipped").Add(float64(skipped))
}

// SetCatalog publishes the current catalog counts.
func SetCatalog(total, active, visible int) {
	catalogRecords.WithLabelValues("total").Set(float64(total))
	catalogRecords.WithLabelValues("active").Set(float64(active))
	catalogRecords.WithLabelValues("visible").Set(float64(visible))
}

func SetStartupProgress(percent int) {
	startupProgress.Set(float64(percent))
}

func IncResolve(outcome string) {
	resolvesTotal.WithLabelValues(outcome).Inc()
}

// RecordFrame observes one batch resolution. fixes is accepted for symmetry
// with the log line; only misses are exported.
func RecordFrame(d time.Duration, fixes, misses int) {
	_ = fixes
	frameSeconds.Observe(d.Seconds())
	frameMisses.Set(float64(misses))
}

func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }
func IncStreamsActive()                 { streamsActive.Inc() }
func DecStreamsActive()                 { streamsActive.Dec() }
func IncStreamErrors(reason string)     { streamErrorsTotal.WithLabelValues(reason).Inc() }
func IncStreamMessages(msgType string)  { streamMessagesTotal.WithLabelValues(msgType).Inc() }
func AddStreamBytes(n int64)            { streamBytesTotal.Add(float64(n)) }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so the scene stream keeps working
// behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// exactRoutes are label values used as-is.
var exactRoutes = map[string]bool{
	"/":                       true,
	"/healthz":                true,
	"/readyz":                 true,
	"/metrics":                true,
	"/api/v1/status":          true,
	"/api/v1/stats":           true,
	"/api/v1/categories":      true,
	"/api/v1/search":          true,
	"/api/v1/satellites":      true,
	"/api/v1/selection":       true,
	"/api/v1/pick":            true,
	"/api/v1/playback":        true,
	"/api/v1/playback/toggle": true,
	"/api/v1/playback/speed":  true,
	"/api/v1/camera/home":     true,
	"/api/v1/stream/scene":    true,
}

// normalizeRoute maps a request path to a bounded set of label values.
// Category names are collapsed so a client cannot grow the label set.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/categories/"); ok {
		if name, ok := strings.CutSuffix(rest, "/toggle"); ok && name != "" {
			return "/api/v1/categories/{name}/toggle"
		}
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

// Package api exposes the view, playback and scene controls over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/auth"
	"github.com/anldrms/satellite-tracker-pro/internal/coordinator"
	"github.com/anldrms/satellite-tracker-pro/internal/health"
	"github.com/anldrms/satellite-tracker-pro/internal/httputil"
	"github.com/anldrms/satellite-tracker-pro/internal/metrics"
	"github.com/anldrms/satellite-tracker-pro/internal/playback"
	"github.com/anldrms/satellite-tracker-pro/internal/scene"
	"github.com/anldrms/satellite-tracker-pro/internal/view"
)

// Deps are the collaborators behind the routes.
type Deps struct {
	Coordinator *coordinator.Coordinator
	View        *view.Sync
	Playback    *playback.Controller
	Scene       *scene.Scene
	Stream      http.Handler
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(logger, authCfg, deps),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// The scene stream extends its own write deadline per event.
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with its middleware chain:
// metrics -> logging -> auth -> mux.
func NewHandler(logger *slog.Logger, authCfg auth.Config, deps Deps) http.Handler {
	h := &handlers{deps: deps, logger: logger}
	ready := readyGate(deps.Coordinator.Ready)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Coordinator.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/status", h.status)

	mux.Handle("GET /api/v1/stats", ready(h.stats))
	mux.Handle("GET /api/v1/categories", ready(h.categories))
	mux.Handle("POST /api/v1/categories/{name}/toggle", ready(h.toggleCategory))
	mux.Handle("PUT /api/v1/search", ready(h.search))
	mux.Handle("GET /api/v1/satellites", ready(h.satellites))
	mux.Handle("GET /api/v1/selection", ready(h.selection))
	mux.Handle("POST /api/v1/selection", ready(h.selectSatellite))
	mux.Handle("DELETE /api/v1/selection", ready(h.deselect))
	mux.Handle("POST /api/v1/pick", ready(h.pick))
	mux.Handle("GET /api/v1/playback", ready(h.playbackState))
	mux.Handle("POST /api/v1/playback/toggle", ready(h.togglePlay))
	mux.Handle("POST /api/v1/playback/speed", ready(h.cycleSpeed))
	mux.Handle("POST /api/v1/camera/home", ready(h.home))
	if deps.Stream != nil {
		mux.Handle("GET /api/v1/stream/scene", ready(deps.Stream.ServeHTTP))
	}

	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// readyGate answers 503 on wrapped routes until startup has finished.
func readyGate(ready func() bool) func(http.HandlerFunc) http.Handler {
	return func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ready() {
				w.Header().Set("Retry-After", "1")
				httputil.WriteError(w, http.StatusServiceUnavailable, "starting")
				return
			}
			next(w, r)
		})
	}
}

// quietPath returns true for health and readiness paths that should not log at INFO.
func quietPath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so the scene stream works behind
// this middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if quietPath(r.URL.Path) || r.URL.Path == "/api/v1/status" {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, false),
			)
		})
	}
}

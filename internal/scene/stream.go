package scene

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/httputil"
	"github.com/anldrms/satellite-tracker-pro/internal/metrics"
)

// StreamConfig holds scene stream configuration loaded from environment
// variables.
type StreamConfig struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10)
	MaxTotal           int           // Max concurrent streams overall (default: 1000)
	KeepaliveInterval  time.Duration // Keep-alive comment interval (default: 30s)
	TrustProxy         bool          // Take the client IP from X-Forwarded-For
}

// StreamHandler serves the scene event stream:
//
//	GET /api/v1/stream/scene
//
// The first data message on every connection is a full snapshot; after that
// the client receives visibility, emphasis, camera, clock and frame messages
// as they happen. Keep-alive comments (":\n\n") fill idle periods.
type StreamHandler struct {
	scene   *Scene
	config  StreamConfig
	limiter *connLimiter
	logger  *slog.Logger
}

func NewStreamHandler(s *Scene, config StreamConfig, logger *slog.Logger) *StreamHandler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &StreamHandler{
		scene:   s,
		config:  config,
		limiter: newConnLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded", "remote_ip", ip, "current_count", h.limiter.count(ip))
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}
	defer h.limiter.release(ip)

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub := h.scene.hub.subscribe()
	defer h.scene.hub.unsubscribe(sub.id)
	subID := sub.id

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()
	start := time.Now()
	h.logger.Info("stream connected", "subscriber", subID, "remote_ip", ip, "user_agent", r.Header.Get("User-Agent"))
	defer func() {
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"subscriber", subID,
			"remote_ip", ip,
			"duration_seconds", int(time.Since(start).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived response: drop the server's WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{w: w, flusher: flusher, rc: rc, logger: h.logger}

	// Jittered 3-7s reconnect delay spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.IntN(4000))
	flusher.Flush()

	if err := h.sendSnapshot(c); err != nil {
		h.logger.Warn("stream snapshot error", "subscriber", subID, "error", err)
		return
	}

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-sub.events:
			if err := h.forward(c, sub, msg); err != nil {
				h.logger.Warn("stream send error", "subscriber", subID, "type", msg.typ, "error", err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "subscriber", subID, "error", err)
				return
			}
		}
	}
}

// forward delivers msg, or a fresh snapshot in its place when events were
// dropped for sub since the last delivery.
func (h *StreamHandler) forward(c *client, sub *subscriber, msg message) error {
	if sub.needsResync() {
		metrics.IncStreamConnections("resync")
		h.logger.Debug("stream resync after dropped events", "subscriber", sub.id)
		return h.sendSnapshot(c)
	}
	if err := c.send(msg.typ, msg.data); err != nil {
		metrics.IncStreamErrors("send_error")
		return err
	}
	return nil
}

func (h *StreamHandler) sendSnapshot(c *client) error {
	snap, err := json.Marshal(h.scene.snapshot())
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.send("snapshot", snap); err != nil {
		metrics.IncStreamErrors("send_error")
		return err
	}
	return nil
}

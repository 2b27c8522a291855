package scene

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/metrics"
)

// writeTimeout bounds each write on a stream connection.
const writeTimeout = 30 * time.Second

// client writes SSE frames to one stream connection.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger
}

// send writes data as one SSE "data:" message.
func (c *client) send(typ string, data []byte) error {
	c.extendDeadline()

	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()

	metrics.IncStreamMessages(typ)
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendKeepalive writes an SSE comment line.
func (c *client) sendKeepalive() error {
	c.extendDeadline()

	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	c.flusher.Flush()

	metrics.AddStreamBytes(int64(n))
	return nil
}

func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}

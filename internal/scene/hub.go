package scene

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/anldrms/satellite-tracker-pro/internal/metrics"
)

// subscriberBuffer is the number of undelivered messages a slow stream may
// hold before further messages are dropped for it. A drop marks the
// subscriber for resync: its stream discards the backlog and sends a fresh
// snapshot, so missed visibility or emphasis deltas are never lost for good.
const subscriberBuffer = 64

// message is one pre-marshalled scene event.
type message struct {
	typ  string
	data []byte
}

// subscriber is one stream's queue.
type subscriber struct {
	id     string
	events chan message
	resync atomic.Bool
}

// needsResync reports and clears the resync mark. When set, the queued
// backlog is discarded; the caller must send a snapshot next.
func (s *subscriber) needsResync() bool {
	if !s.resync.Swap(false) {
		return false
	}
	for {
		select {
		case <-s.events:
		default:
			return true
		}
	}
}

// hub fans scene events out to stream subscribers. Publishing never blocks
// on a slow subscriber.
type hub struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	logger *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{subs: make(map[string]*subscriber), logger: logger}
}

func (h *hub) subscribe() *subscriber {
	sub := &subscriber{id: uuid.NewString(), events: make(chan message, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub
}

func (h *hub) unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// publish marshals v once and offers it to every subscriber.
func (h *hub) publish(typ string, v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		h.logger.Warn("scene event marshal error", "type", typ, "error", err)
		return
	}

	msg := message{typ: typ, data: data}
	for id, sub := range h.subs {
		select {
		case sub.events <- msg:
		default:
			sub.resync.Store(true)
			metrics.IncStreamErrors("dropped")
			h.logger.Debug("scene event dropped for slow subscriber; resync pending", "subscriber", id, "type", typ)
		}
	}
}

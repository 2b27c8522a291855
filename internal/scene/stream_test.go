package scene

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anldrms/satellite-tracker-pro/internal/transform"
)

// readEvents returns a function yielding the next decoded data message.
func readEvents(t *testing.T, body *bufio.Scanner) func() map[string]any {
	return func() map[string]any {
		t.Helper()
		for body.Scan() {
			line := body.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var msg map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
				t.Fatalf("invalid JSON in SSE data line: %v", err)
			}
			return msg
		}
		t.Fatalf("stream ended: %v", body.Err())
		return nil
	}
}

func waitForSubscribers(t *testing.T, s *Scene, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", s.hub.count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamSnapshotThenEvents(t *testing.T) {
	s, _ := newTestScene(map[string]transform.Geodetic{"ISS (ZARYA)": {LonDeg: 12, LatDeg: 34, AltKm: 420}})
	s.CreateProxy("ISS (ZARYA)", "#00ff00")

	srv := httptest.NewServer(NewStreamHandler(s, StreamConfig{MaxConcurrentPerIP: 2, KeepaliveInterval: time.Minute}, testLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}

	next := readEvents(t, bufio.NewScanner(resp.Body))

	snap := next()
	if snap["type"] != "snapshot" {
		t.Fatalf("first message type = %v, want snapshot", snap["type"])
	}
	proxies, _ := snap["proxies"].([]any)
	if len(proxies) != 1 || proxies[0].(map[string]any)["id"] != "ISS (ZARYA)" {
		t.Errorf("snapshot proxies = %v", snap["proxies"])
	}

	waitForSubscribers(t, s, 1)
	s.SetEmphasis("ISS (ZARYA)", EmphasisSelected, "ISS (ZARYA)")
	if msg := next(); msg["type"] != "emphasis" || msg["size"].(float64) != SelectedPointSize {
		t.Errorf("emphasis message = %v", msg)
	}

	s.SetVisible("ISS (ZARYA)", false)
	s.Frame(context.Background())
	// The proxy was created after the last frame, so the first frame after
	// connect carries a fresh snapshot instead of a visibility delta.
	if msg := next(); msg["type"] != "snapshot" {
		t.Errorf("message = %v, want snapshot", msg["type"])
	}
	if msg := next(); msg["type"] != "frame" {
		t.Errorf("message = %v, want frame", msg["type"])
	}

	s.SetVisible("ISS (ZARYA)", true)
	s.Frame(context.Background())
	vis := next()
	if vis["type"] != "visibility" {
		t.Fatalf("message = %v, want visibility", vis["type"])
	}
	if shown, _ := vis["shown"].([]any); len(shown) != 1 || shown[0] != "ISS (ZARYA)" {
		t.Errorf("shown = %v", vis["shown"])
	}
	frame := next()
	sats, _ := frame["sat"].([]any)
	if len(sats) != 1 {
		t.Fatalf("frame sats = %v", frame["sat"])
	}
	p := sats[0].(map[string]any)["p"].([]any)
	if p[0].(float64) != 12 || p[1].(float64) != 34 || p[2].(float64) != 420 {
		t.Errorf("frame position = %v, want [12 34 420]", p)
	}

	s.Home()
	if msg := next(); msg["type"] != "camera" || msg["duration_ms"].(float64) != 2000 || msg["ecef"] == nil {
		t.Errorf("camera message = %v", msg)
	}

	s.SetClock(true, 10)
	if msg := next(); msg["type"] != "clock" || msg["multiplier"].(float64) != 10 {
		t.Errorf("clock message = %v", msg)
	}
}

func TestStreamRateLimit(t *testing.T) {
	s, _ := newTestScene(nil)
	handler := NewStreamHandler(s, StreamConfig{MaxConcurrentPerIP: 1, KeepaliveInterval: time.Minute}, testLogger())
	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	first, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Body.Close()
	waitForSubscribers(t, s, 1)

	second, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Body.Close()

	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", second.StatusCode, http.StatusTooManyRequests)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestStreamKeepalive(t *testing.T) {
	s, _ := newTestScene(nil)
	srv := httptest.NewServer(NewStreamHandler(s, StreamConfig{KeepaliveInterval: 20 * time.Millisecond}, testLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if line == ":" {
			return
		}
		if line != "" && !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
	t.Error("no keepalive comment received")
}

func TestConnLimiter(t *testing.T) {
	l := newConnLimiter(3, 4)

	for i := 0; i < 3; i++ {
		if !l.acquire("10.0.0.1") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if l.acquire("10.0.0.1") {
		t.Error("acquire beyond per-IP limit should fail")
	}
	if !l.acquire("10.0.0.2") {
		t.Error("different IP should not be limited")
	}
	if l.acquire("10.0.0.3") {
		t.Error("acquire beyond global limit should fail")
	}

	l.release("10.0.0.1")
	if !l.acquire("10.0.0.3") {
		t.Error("acquire after release should succeed")
	}
	if c := l.count("10.0.0.1"); c != 2 {
		t.Errorf("count = %d, want 2", c)
	}
}

func TestConnLimiterConcurrent(t *testing.T) {
	l := newConnLimiter(100, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.acquire("10.0.0.1") {
				defer l.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := l.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

// TestStreamResyncsAfterDroppedEvents fills a subscriber's queue so a
// visibility delta is dropped, then checks the next delivery is a snapshot
// carrying the current visibility instead of the stale backlog.
func TestStreamResyncsAfterDroppedEvents(t *testing.T) {
	s, _ := newTestScene(map[string]transform.Geodetic{
		"STARLINK-1007": {LonDeg: 1, LatDeg: 2, AltKm: 550},
		"STARLINK-1008": {LonDeg: 3, LatDeg: 4, AltKm: 550},
	})
	s.CreateProxy("STARLINK-1007", "#00d9ff")
	s.CreateProxy("STARLINK-1008", "#00d9ff")
	s.Frame(context.Background())

	h := NewStreamHandler(s, StreamConfig{}, testLogger())
	sub := s.hub.subscribe()
	defer s.hub.unsubscribe(sub.id)

	for range subscriberBuffer {
		s.SetClock(true, 1)
	}
	s.SetVisible("STARLINK-1008", false)
	s.Frame(context.Background())
	if !sub.resync.Load() {
		t.Fatal("full queue did not mark the subscriber for resync")
	}

	rec := httptest.NewRecorder()
	c := &client{w: rec, flusher: rec, rc: http.NewResponseController(rec), logger: testLogger()}

	if err := h.forward(c, sub, <-sub.events); err != nil {
		t.Fatal(err)
	}
	if n := len(sub.events); n != 0 {
		t.Errorf("backlog = %d after resync, want 0", n)
	}

	next := readEvents(t, bufio.NewScanner(strings.NewReader(rec.Body.String())))
	snap := next()
	if snap["type"] != "snapshot" {
		t.Fatalf("delivered %v, want snapshot", snap["type"])
	}
	visible := map[string]bool{}
	for _, p := range snap["proxies"].([]any) {
		pm := p.(map[string]any)
		visible[pm["id"].(string)] = pm["visible"].(bool)
	}
	if !visible["STARLINK-1007"] || visible["STARLINK-1008"] {
		t.Errorf("snapshot visibility = %v, want 1008 hidden", visible)
	}

	// Delivery returns to normal once resynced.
	rec.Body.Reset()
	s.SetClock(true, 10)
	if err := h.forward(c, sub, <-sub.events); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"type":"clock"`) {
		t.Errorf("after resync got %q, want clock message", rec.Body.String())
	}
}

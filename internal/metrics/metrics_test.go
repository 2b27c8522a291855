package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/status", "/api/v1/status"},
		{"/api/v1/stats", "/api/v1/stats"},
		{"/api/v1/categories", "/api/v1/categories"},
		{"/api/v1/search", "/api/v1/search"},
		{"/api/v1/satellites", "/api/v1/satellites"},
		{"/api/v1/selection", "/api/v1/selection"},
		{"/api/v1/pick", "/api/v1/pick"},
		{"/api/v1/playback/speed", "/api/v1/playback/speed"},
		{"/api/v1/camera/home", "/api/v1/camera/home"},
		{"/api/v1/stream/scene", "/api/v1/stream/scene"},

		// Category toggles collapse to one label.
		{"/api/v1/categories/Starlink/toggle", "/api/v1/categories/{name}/toggle"},
		{"/api/v1/categories/Space%20Stations/toggle", "/api/v1/categories/{name}/toggle"},

		// Unknown/bot paths collapse to "other".
		{"/api/v1/categories//toggle", "other"},
		{"/api/v1/categories/Starlink", "other"},
		{"/wp-admin", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 distinct category names produce
// exactly 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[normalizeRoute(fmt.Sprintf("/api/v1/categories/group-%d/toggle", i))] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for category toggles, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareKeepsFlusher(t *testing.T) {
	var flushed bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer does not implement http.Flusher")
		}
		w.WriteHeader(http.StatusTeapot)
		f.Flush()
		flushed = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stream/scene", nil))

	if !flushed || !rec.Flushed {
		t.Error("flush did not reach the recorder")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordGroupFetch("ok", 0)
	SetCatalog(3, 2, 1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"satview_group_fetches_total", `satview_catalog_records{state="visible"} 1`} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

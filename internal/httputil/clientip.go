// Package httputil holds request and response helpers shared by the control
// API and the scene stream.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address for per-client limits and request
// logs. Forwarding headers are honored only when trustProxy is set: the
// leftmost X-Forwarded-For hop wins, then X-Real-IP.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedFor(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func forwardedFor(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

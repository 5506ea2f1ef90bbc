package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const timeoutBody = `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`

// Timeout bounds handler time. Websocket upgrades pass through untouched
// because the buffered writer cannot be hijacked.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return func(next http.Handler) http.Handler {
		bounded := http.TimeoutHandler(next, timeout, timeoutBody)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			bounded.ServeHTTP(w, r)
			if elapsed := time.Since(start); elapsed >= timeout {
				slog.Warn("request timed out", "path", r.URL.Path, "timeout", timeout.String())
			}
		})
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

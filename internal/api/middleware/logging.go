package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

// RequestLogger logs one line per request with the matched route pattern.
// Health checks are only logged in verbose mode. A nil log uses the global
// logger.
func RequestLogger(log *slog.Logger, verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				if !verbose && r.URL.Path == "/health" {
					return
				}
				l := log
				if l == nil {
					l = logger.Default()
				}

				status := responseStatus(ww, r)
				attrs := []slog.Attr{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int64("duration_ms", time.Since(start).Milliseconds()),
					slog.Int("bytes", ww.BytesWritten()),
				}
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					attrs = append(attrs, slog.String("route", rctx.RoutePattern()))
				}
				if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
					attrs = append(attrs, slog.String("request_id", reqID))
				}
				if verbose {
					attrs = append(attrs, slog.String("remote_addr", r.RemoteAddr))
				}

				l.LogAttrs(context.Background(), levelFor(status, verbose), "HTTP request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// responseStatus reports 101 for hijacked upgrades, which never write a
// status through the wrapper.
func responseStatus(ww chimiddleware.WrapResponseWriter, r *http.Request) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	if r.Header.Get("Upgrade") != "" {
		return http.StatusSwitchingProtocols
	}
	return http.StatusOK
}

func levelFor(status int, verbose bool) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

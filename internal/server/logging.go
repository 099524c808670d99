package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kamekamek/googlecalendar-mcp/pkg/logger"
)

// LoggingMiddleware logs one line per request at Info (method, path, status,
// duration), grounded on cmd/thv-registry-api/app/serve.go's
// v1.LoggingMiddleware slot in the chi middleware stack. Recoverer, chained
// before this middleware runs its deferred recover, still logs panics at
// Error via its own stack trace output; this middleware only covers the
// normal request/response path.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			if rec := recover(); rec != nil {
				logger.Get().Error("panic handling request",
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
					"panic", rec,
				)
				panic(rec) // re-panic so Recoverer still converts it to a 500
			}
		}()

		next.ServeHTTP(ww, r)

		logger.Infow("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

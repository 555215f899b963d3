package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// SlowRequestThreshold marks requests worth a warning in the access log
const SlowRequestThreshold = time.Second

// MetricsMiddleware logs every request and records its timing under the
// matched route template. It must be installed with Router.Use so the route
// is known.
func MetricsMiddleware(mc *MetricsCollector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			elapsed := time.Since(start)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}
			mc.Record(r.Method, path, rw.statusCode, elapsed)

			log := Logger(r.Context()).With(
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"duration", elapsed)
			if elapsed > SlowRequestThreshold {
				log.Warnw("Slow request detected")
				return
			}
			log.Infow("request served")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

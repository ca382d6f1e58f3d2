package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/zsiec/hostpanel/internal/logger"
	"github.com/zsiec/hostpanel/internal/metrics"
)

// probes are polled constantly and kept out of the request metrics.
var probes = map[string]bool{"/health": true, "/ready": true, "/live": true}

// routeLabel is the matched route template, so path parameters do not
// create new series. Unmatched requests share one label.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if probes[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := logger.NewResponseWriter(w)
		next.ServeHTTP(rw, r)
		d := time.Since(start)

		metrics.RecordHTTPRequest(r.Method, routeLabel(r), rw.StatusCode(), d)
		logger.FromContext(r.Context()).WithFields(map[string]interface{}{
			"status":      rw.StatusCode(),
			"duration_ms": float64(d.Microseconds()) / 1000,
		}).Debug("Request completed")
	})
}

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/zsiec/cloudstream/internal/logger"
	"github.com/zsiec/cloudstream/internal/metrics"
)

// metricsMiddleware records request metrics by route template and logs
// each completed request.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := logger.NewResponseWriter(w)

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(route, r.Method, strconv.Itoa(rw.StatusCode()), elapsed.Seconds())

		entry := logger.FromContext(r.Context()).WithFields(map[string]interface{}{
			"status":      rw.StatusCode(),
			"duration_ms": float64(elapsed.Microseconds()) / 1000,
			"bytes":       rw.BytesWritten(),
		})
		switch route {
		case "/health", "/ready", "/live":
			entry.Debug("Request completed")
		default:
			entry.Info("Request completed")
		}
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Point-Count, X-Point-Stride, X-Frame-Name, X-Frame-Index")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// altSvcMiddleware advertises the HTTP/3 listener to HTTP/1.1 clients.
func (s *Server) altSvcMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.http3Server != nil && r.ProtoMajor < 3 {
			_ = s.http3Server.SetQUICHeaders(w.Header())
		}
		next.ServeHTTP(w, r)
	})
}

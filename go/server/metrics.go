package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cogniblock_http_requests_total",
	Help: "HTTP requests served, by method and status code.",
}, []string{"method", "code"})

var sseSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cogniblock_sse_subscribers",
	Help: "Currently connected event-stream subscribers.",
})

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		httpRequests.WithLabelValues(r.Method, fmt.Sprint(ww.Status())).Inc()
	})
}

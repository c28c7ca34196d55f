package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth reports that the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.opts.Now().Sub(s.metrics.started).Round(time.Second).String(),
	})
}

// handleReady checks the storage backend and reports cache and limiter state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.opts.Ready != nil {
		if err := s.opts.Ready(ctx); err != nil {
			checks["storage"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	} else {
		checks["storage"] = "not_checked"
	}

	checks["cache"] = map[string]int{
		"monthly_entries":    s.monthlyCache.Size(),
		"comparison_entries": s.comparisonCache.Size(),
		"dashboard_entries":  s.dashboardCache.Size(),
	}
	checks["rate_limiter"] = map[string]int{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	writeData(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	trace := s.tracer.GetMetrics()
	limits := s.rateLimiter.GetMetrics()
	sec := s.detector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", trace.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", trace.ServerErrors)
	metric("price_writes_total", "counter", "Price observations written through the API", atomic.LoadInt64(&s.metrics.priceWrites))
	metric("cache_hits_total", "counter", "Aggregation cache hits", atomic.LoadInt64(&s.metrics.cacheHits))
	metric("cache_misses_total", "counter", "Aggregation cache misses", atomic.LoadInt64(&s.metrics.cacheMisses))
	metric("cache_entries", "gauge", "Current aggregation cache entries",
		s.monthlyCache.Size()+s.comparisonCache.Size()+s.dashboardCache.Size())
	metric("rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter", limits.Rejected)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", limits.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests flagged as suspicious", sec.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Process uptime in seconds", fmt.Sprintf("%.0f", s.opts.Now().Sub(s.metrics.started).Seconds()))
}

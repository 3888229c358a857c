package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"finman/internal/core"
	"finman/internal/log"
	"finman/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks templates and the backing store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.svc.Store == nil {
		checks["store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err := s.svc.Store.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Store ping failed", log.FieldError, err)
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	traceMetrics := s.tracer.GetMetrics()

	metrics := []struct {
		name, help, kind string
		value            int64
	}{
		{"http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests},
		{"http_response_time_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime},
		{"transaction_writes_total", "Transactions created, updated or deleted", "counter", s.writes.Load()},
		{"rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount},
		{"suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests},
		{"invalid_ip_attempts_total", "Requests with an unparseable client address", "counter", securityMetrics.InvalidIPAttempts},
		{"uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.startedAt).Seconds())},
	}

	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", m.name, m.kind)
		fmt.Fprintf(w, "%s %d\n\n", m.name, m.value)
	}
}

type indexData struct {
	services.Dashboard
	Currency   string
	Categories []string
	Today      string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	month, err := parseMonthQuery(r.URL.Query(), "month")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	dash, err := s.svc.Dashboard.Dashboard(ctx, month)
	if err != nil {
		logger.ErrorContext(r.Context(), "Dashboard load failed", log.FieldError, err)
		http.Error(w, "could not load dashboard", statusFor(err))
		return
	}

	data := indexData{
		Dashboard:  dash,
		Currency:   dash.Preferences.Currency,
		Categories: s.categories(ctx),
		Today:      core.Today().String(),
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		logger.WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Dashboard template execution failed",
			log.FieldError, err)
		http.Error(w, "could not render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// categories lists suggestions for input forms. A failure only costs the
// suggestions, so it is logged and swallowed.
func (s *Server) categories(ctx context.Context) []string {
	if s.svc.Categories == nil {
		return nil
	}
	cats, err := s.svc.Categories.Categories(ctx)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Category list error", log.FieldError, err)
		return nil
	}
	return cats
}

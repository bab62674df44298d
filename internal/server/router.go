// Package server assembles the DriftWatch HTTP surface.
package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftwatch-systems/driftwatch/internal/handlers"
	"github.com/driftwatch-systems/driftwatch/internal/middleware"
)

// NewRouter constructs a ServeMux with the DriftWatch API routes registered.
// Health, metrics and login are public; everything else requires a bearer
// token.
func NewRouter(h *handlers.Handler, authMW *middleware.Auth, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/auth/login", h.Login)

	// Alerts
	mux.HandleFunc("/api/v1/alerts", authMW.RequireAuth(h.ListAlerts))

	// Lifecycle transitions: /api/v1/alerts/{id}/<action>
	mux.HandleFunc("/api/v1/alerts/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/acknowledge"):
			authMW.RequireAuth(h.AcknowledgeAlert)(w, r)
		case strings.HasSuffix(path, "/confirm"):
			authMW.RequireAuth(h.ConfirmAlert)(w, r)
		case strings.HasSuffix(path, "/false-positive"):
			authMW.RequireAuth(h.MarkFalsePositive)(w, r)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	})

	// Anomalies
	mux.HandleFunc("/api/v1/anomalies", authMW.RequireAuth(h.ListAnomalies))

	// Lazy alert lookup: /api/v1/anomalies/{id}/alert
	mux.HandleFunc("/api/v1/anomalies/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/alert") {
			authMW.RequireAuth(h.AnomalyAlert)(w, r)
			return
		}
		http.Error(w, "Not found", http.StatusNotFound)
	})

	// Telemetry and reports
	mux.HandleFunc("/api/v1/telemetry", authMW.RequireAuth(h.Telemetry))
	mux.HandleFunc("/api/v1/reports/daily-features", authMW.RequireAuth(h.DailyFeatures))
	mux.HandleFunc("/api/v1/reports/daily-anomalies", authMW.RequireAuth(h.DailyAnomalies))
	mux.HandleFunc("/api/v1/reports/top-ips", authMW.RequireAuth(h.TopIPs))

	// Per-user settings
	mux.HandleFunc("/api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			authMW.RequireAuth(h.GetSettings)(w, r)
		case http.MethodPut:
			authMW.RequireAuth(h.UpdateSettings)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Detector calibration
	mux.HandleFunc("/api/v1/detector/train", authMW.RequireAuth(h.TrainDetector))

	return middleware.RequestID(middleware.Logging(logger)(mux))
}

// Package handlers implements the DriftWatch REST API consumed by the
// dashboard frontend.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/alert"
	"github.com/driftwatch-systems/driftwatch/internal/auth"
	"github.com/driftwatch-systems/driftwatch/internal/httputil"
	"github.com/driftwatch-systems/driftwatch/internal/middleware"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/pipeline"
	"github.com/driftwatch-systems/driftwatch/internal/report"
	"github.com/driftwatch-systems/driftwatch/internal/settings"
	"github.com/driftwatch-systems/driftwatch/internal/store"
)

// topIPsDefaultLimit mirrors the dashboard frequency chart: ten bars.
const topIPsDefaultLimit = 10

// Config carries the collaborators the API exposes.
type Config struct {
	Controller *pipeline.Controller
	Store      *store.Store
	Alerts     *alert.Manager
	Settings   settings.Repository
	Auth       *auth.Service
	Logger     *slog.Logger
}

type Handler struct {
	controller *pipeline.Controller
	store      *store.Store
	alerts     *alert.Manager
	settings   settings.Repository
	auth       *auth.Service
	logger     *slog.Logger
}

func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		controller: cfg.Controller,
		store:      cfg.Store,
		alerts:     cfg.Alerts,
		settings:   cfg.Settings,
		auth:       cfg.Auth,
		logger:     logger,
	}
}

// HealthCheck handles GET /healthz.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error("login failed", slog.String("error", err.Error()))
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, session)
}

// ListAlerts handles GET /api/v1/alerts. Alerts are scoped to the caller's
// role through their anomaly's category. With status=confirmed and a since
// timestamp the response splits into alerts confirmed after that instant
// ("new") and the rest ("seen").
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "Invalid since time", http.StatusBadRequest)
			return
		}
		since = t
	}
	status := models.AlertStatus(r.URL.Query().Get("status"))

	alerts := h.roleAlerts(user.Role, status)

	if status == models.AlertStatusConfirmed && !since.IsZero() {
		newAlerts := make([]models.Alert, 0)
		seen := make([]models.Alert, 0)
		for _, a := range alerts {
			// Alerts confirmed before the timer machinery recorded a time
			// fall back to their raise time.
			confTime, ok := h.alerts.ConfirmedAt(a.ID)
			if !ok {
				confTime = a.RaisedAt
			}
			if confTime.After(since) {
				newAlerts = append(newAlerts, a)
			} else {
				seen = append(seen, a)
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"new":  newAlerts,
			"seen": seen,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

// AcknowledgeAlert handles POST /api/v1/alerts/{id}/acknowledge.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if h.transitionAlert(w, r, "/acknowledge", models.AlertStatusAcknowledged) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// ConfirmAlert handles POST /api/v1/alerts/{id}/confirm.
func (h *Handler) ConfirmAlert(w http.ResponseWriter, r *http.Request) {
	if h.transitionAlert(w, r, "/confirm", models.AlertStatusConfirmed) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// MarkFalsePositive handles POST /api/v1/alerts/{id}/false-positive. A false
// positive also recalibrates the detector on the caller's historical data.
func (h *Handler) MarkFalsePositive(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.transitionAlert(w, r, "/false-positive", models.AlertStatusFalsePositive) {
		return
	}
	h.controller.TriggerRetraining(user.Role)
	w.WriteHeader(http.StatusNoContent)
}

// transitionAlert applies one lifecycle transition from an
// /api/v1/alerts/{id}/<action> path. It writes the error response itself and
// reports whether the transition succeeded.
func (h *Handler) transitionAlert(w http.ResponseWriter, r *http.Request, suffix string, status models.AlertStatus) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}

	id := r.URL.Path[len("/api/v1/alerts/"):]
	if len(id) > len(suffix) {
		id = id[:len(id)-len(suffix)]
	}
	if id == "" {
		http.Error(w, "Alert ID required", http.StatusBadRequest)
		return false
	}

	if err := h.controller.TransitionAlert(r.Context(), id, status); err != nil {
		if errors.Is(err, models.ErrAlertNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return false
		}
		h.logger.Error("alert transition failed",
			slog.String("alert_id", id),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Failed to update alert", http.StatusInternalServerError)
		return false
	}
	return true
}

// ListAnomalies handles GET /api/v1/anomalies. The confirmed=true flag keeps
// only anomalies whose alert has been confirmed.
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		http.Error(w, "Invalid time range", http.StatusBadRequest)
		return
	}

	anomalies := h.controller.AnomaliesInPeriod(start, end, user.Role)
	if r.URL.Query().Get("confirmed") == "true" {
		confirmed := h.confirmedAnomalyIDs()
		kept := make([]models.Anomaly, 0, len(anomalies))
		for _, a := range anomalies {
			if confirmed[a.ID] {
				kept = append(kept, a)
			}
		}
		anomalies = kept
	}
	if anomalies == nil {
		anomalies = []models.Anomaly{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": anomalies,
		"total":     len(anomalies),
	})
}

// AnomalyAlert handles GET /api/v1/anomalies/{id}/alert. The alert is
// created on first access if the anomaly has none yet.
func (h *Handler) AnomalyAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	id := r.URL.Path[len("/api/v1/anomalies/"):]
	if len(id) > len("/alert") {
		id = id[:len(id)-len("/alert")]
	}
	if id == "" {
		http.Error(w, "Anomaly ID required", http.StatusBadRequest)
		return
	}

	a, err := h.controller.AlertForAnomaly(r.Context(), id, user)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Anomaly not found", http.StatusNotFound)
			return
		}
		h.logger.Error("alert lookup failed",
			slog.String("anomaly_id", id),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Failed to get alert", http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, a)
}

// Telemetry handles GET /api/v1/telemetry.
func (h *Handler) Telemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		http.Error(w, "Invalid time range", http.StatusBadRequest)
		return
	}

	records := h.roleRecords(user.Role, start, end)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   len(records),
	})
}

// DailyFeatures handles GET /api/v1/reports/daily-features.
func (h *Handler) DailyFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		http.Error(w, "Invalid time range", http.StatusBadRequest)
		return
	}

	days := report.DailyAverageFeatures(h.roleRecords(user.Role, start, end))
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"days": days})
}

// DailyAnomalies handles GET /api/v1/reports/daily-anomalies.
func (h *Handler) DailyAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		http.Error(w, "Invalid time range", http.StatusBadRequest)
		return
	}

	anomalies := h.controller.AnomaliesInPeriod(start, end, user.Role)
	days := report.DailyConfirmedCounts(anomalies, h.confirmedAnomalyIDs())
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"days": days})
}

// TopIPs handles GET /api/v1/reports/top-ips. The frequency chart belongs to
// the traffic view, so only the security role may call it.
func (h *Handler) TopIPs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if user.Role != models.RoleSecurity {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), topIPsDefaultLimit)
	ips := report.TopSourceIPs(h.store.Raw(time.Time{}, time.Time{}), limit)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"ips": ips})
}

// GetSettings handles GET /api/v1/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	s, err := h.settings.Load(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("settings load failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, s)
}

type settingsRequest struct {
	Sensitivity      float64  `json:"sensitivity"`
	MonitoredSources []string `json:"monitored_sources"`
}

// UpdateSettings handles PUT /api/v1/settings. The new sensitivity becomes
// both the caller's stored value and the process-wide default, matching the
// dashboard's single sensitivity control.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Sensitivity < 0 || req.Sensitivity > 1 {
		http.Error(w, "Sensitivity must be between 0 and 1", http.StatusBadRequest)
		return
	}

	current, err := h.settings.Load(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("settings load failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	current.UserID = user.ID
	current.Sensitivity = req.Sensitivity
	if len(req.MonitoredSources) > 0 {
		current.MonitoredSources = req.MonitoredSources
	}

	if err := h.settings.Save(r.Context(), current); err != nil {
		h.logger.Error("settings save failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}

	h.controller.UpdateGlobalSensitivity(req.Sensitivity)
	httputil.WriteJSON(w, http.StatusOK, current)
}

// TrainDetector handles POST /api/v1/detector/train. Calibration runs on the
// caller's historical data and returns the resulting global sensitivity.
func (h *Handler) TrainDetector(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	s := h.controller.TriggerRetraining(user.Role)
	httputil.WriteJSON(w, http.StatusOK, map[string]float64{"sensitivity": s})
}

// roleAlerts returns the alerts whose anomaly is visible to the role,
// optionally narrowed to one status.
func (h *Handler) roleAlerts(role models.Role, status models.AlertStatus) []models.Alert {
	category, ok := models.CategoryForRole(role)
	if !ok {
		return []models.Alert{}
	}

	out := make([]models.Alert, 0)
	for _, a := range h.alerts.List() {
		if status != "" && a.Status != status {
			continue
		}
		anomaly, ok := h.store.Anomaly(a.AnomalyID)
		if !ok || anomaly.Category != category {
			continue
		}
		out = append(out, a)
	}
	return out
}

// roleRecords returns the prepared records of the role's category inside the
// time range.
func (h *Handler) roleRecords(role models.Role, start, end time.Time) []models.PreparedRecord {
	out := make([]models.PreparedRecord, 0)
	category, ok := models.CategoryForRole(role)
	if !ok {
		return out
	}
	for _, rec := range h.store.Historical(start, end) {
		if rec.Category == category {
			out = append(out, rec)
		}
	}
	return out
}

// confirmedAnomalyIDs collects the ids of anomalies with a confirmed alert.
func (h *Handler) confirmedAnomalyIDs() map[string]bool {
	confirmed := make(map[string]bool)
	for _, a := range h.alerts.List() {
		if a.Status == models.AlertStatusConfirmed {
			confirmed[a.AnomalyID] = true
		}
	}
	return confirmed
}

// currentUser pulls the authenticated operator from the request context.
// The auth middleware guarantees it is present on protected routes.
func currentUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return models.User{}, false
	}
	return user, true
}

// parseTimeRange reads the optional start and end query parameters as
// RFC3339 timestamps. An absent parameter leaves that bound zero, which the
// store treats as unbounded.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// parseInt reads an integer query parameter, falling back to defaultVal on
// absent or unparsable input.
func parseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}

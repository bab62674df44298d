// Package alert manages the lifecycle of alerts raised from anomalies.
//
// An alert starts open and moves forward through the state machine:
// open → confirmed, open → false_positive, open → acknowledged, and
// confirmed → acknowledged. When an auto-confirm timeout is configured, each
// raised alert gets a one-shot timer that confirms it if it is still open
// when the timer fires; any earlier manual transition makes the timer a
// no-op.
package alert

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch-systems/driftwatch/internal/metrics"
	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// Manager owns the alert map and the per-alert auto-confirm timers. One
// manager serves one running session; all state is explicit and guarded by a
// single mutex, so transitions are linearizable per alert id.
type Manager struct {
	mu          sync.Mutex
	alerts      map[string]*models.Alert
	order       []string
	confirmedAt map[string]time.Time
	timers      map[string]*time.Timer

	timeout time.Duration
	logger  *slog.Logger
}

// NewManager returns a manager that auto-confirms open alerts after the
// given timeout. A timeout of zero disables auto-confirmation entirely.
func NewManager(autoConfirmTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		alerts:      make(map[string]*models.Alert),
		confirmedAt: make(map[string]time.Time),
		timers:      make(map[string]*time.Timer),
		timeout:     autoConfirmTimeout,
		logger:      logger,
	}
}

// Raise creates an open alert for the anomaly and returns its id. The
// manager does not deduplicate: callers wanting one alert per anomaly must
// check AlertForAnomaly first.
func (m *Manager) Raise(anomaly models.Anomaly, user models.User) string {
	id, _ := uuid.NewV7()
	alertID := id.String()

	a := &models.Alert{
		ID:        alertID,
		AnomalyID: anomaly.ID,
		RaisedAt:  time.Now(),
		Message: fmt.Sprintf("Alert for user %s: Anomaly %s Score: %v",
			user.Username, anomaly.Description, anomaly.Score),
		Status: models.AlertStatusOpen,
	}

	m.mu.Lock()
	m.alerts[alertID] = a
	m.order = append(m.order, alertID)
	if m.timeout > 0 {
		// The timer handle is kept per alert so explicit cancellation can be
		// added later; today the still-open guard alone keeps firing safe.
		m.timers[alertID] = time.AfterFunc(m.timeout, func() {
			m.autoConfirm(alertID)
		})
	}
	m.mu.Unlock()

	metrics.AlertsRaised.Inc()
	m.logger.Info("alert raised",
		slog.String("alert_id", alertID),
		slog.String("anomaly_id", anomaly.ID),
		slog.String("user_id", user.ID),
	)
	return alertID
}

// autoConfirm is the timer callback. It confirms the alert only if it is
// still open; alerts transitioned manually in the meantime are left alone.
func (m *Manager) autoConfirm(alertID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertID]
	if !ok || a.Status != models.AlertStatusOpen {
		return
	}

	a.Status = models.AlertStatusConfirmed
	m.confirmedAt[alertID] = time.Now()

	metrics.AlertsAutoConfirmed.Inc()
	m.logger.Info("alert auto-confirmed", slog.String("alert_id", alertID))
}

// SetStatus applies a lifecycle transition. Transitions to confirmed record
// a confirmation time for the alert; transitions away from confirmed clear
// it. The change is visible to List immediately after SetStatus returns.
//
// An unknown alert id yields an error wrapping models.ErrAlertNotFound;
// callers treat it as a logged no-op, never a fatal condition.
func (m *Manager) SetStatus(alertID string, status models.AlertStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertID]
	if !ok {
		m.logger.Warn("status transition for unknown alert",
			slog.String("alert_id", alertID),
			slog.String("status", string(status)),
		)
		return fmt.Errorf("set status %q for alert %s: %w", status, alertID, models.ErrAlertNotFound)
	}

	a.Status = status
	if status == models.AlertStatusConfirmed {
		m.confirmedAt[alertID] = time.Now()
	} else {
		delete(m.confirmedAt, alertID)
	}

	metrics.AlertTransitions.WithLabelValues(string(status)).Inc()
	return nil
}

// Get returns a copy of the alert with the given id.
func (m *Manager) Get(alertID string) (models.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertID]
	if !ok {
		return models.Alert{}, false
	}
	return *a, true
}

// AlertForAnomaly returns the first alert raised for the given anomaly.
func (m *Manager) AlertForAnomaly(anomalyID string) (models.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		if a := m.alerts[id]; a.AnomalyID == anomalyID {
			return *a, true
		}
	}
	return models.Alert{}, false
}

// ConfirmedAt returns when the alert entered the confirmed state, if it is
// currently confirmed.
func (m *Manager) ConfirmedAt(alertID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := m.confirmedAt[alertID]
	return ts, ok
}

// List returns a snapshot of all alerts in raise order.
func (m *Manager) List() []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Alert, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.alerts[id])
	}
	return out
}

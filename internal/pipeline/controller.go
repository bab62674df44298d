// Package pipeline orchestrates the per-event flow: extraction, storage,
// detection, alerting, and the optional bus/archive collaborators. Events
// are processed synchronously in arrival order by the single source
// listener.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/alert"
	"github.com/driftwatch-systems/driftwatch/internal/detect"
	"github.com/driftwatch-systems/driftwatch/internal/extract"
	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/metrics"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/notify"
	"github.com/driftwatch-systems/driftwatch/internal/settings"
	"github.com/driftwatch-systems/driftwatch/internal/store"
)

// Archiver mirrors anomalies into external storage. Implementations must
// treat indexing as best-effort; the pipeline only logs their errors.
type Archiver interface {
	Index(ctx context.Context, anomaly models.Anomaly) error
}

// Config wires the pipeline collaborators. Notifier and Archiver may be
// nil, in which case those stages are skipped.
type Config struct {
	Store    *store.Store
	Detector *detect.Detector
	Settings settings.Repository
	Alerts   *alert.Manager
	Notifier notify.Notifier
	Archiver Archiver
	Logger   *slog.Logger

	// User is the identity alerts are raised for when events flow through
	// the background pipeline.
	User models.User
}

// Controller runs the synchronous per-event pipeline and exposes the
// operations the API surfaces build on.
type Controller struct {
	store    *store.Store
	detector *detect.Detector
	settings settings.Repository
	alerts   *alert.Manager
	notifier notify.Notifier
	archiver Archiver
	logger   *slog.Logger
	user     models.User
}

// New wires a controller. Config.Store, Detector, Settings, and Alerts are
// required.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    cfg.Store,
		detector: cfg.Detector,
		settings: cfg.Settings,
		alerts:   cfg.Alerts,
		notifier: cfg.Notifier,
		archiver: cfg.Archiver,
		logger:   logger,
		user:     cfg.User,
	}
}

// OnEvent processes one raw event end to end. It is the listener registered
// on the event source. Extraction failures store nothing; all collaborator
// failures after detection are logged and swallowed.
func (c *Controller) OnEvent(ev models.RawEvent) {
	start := time.Now()
	defer func() {
		metrics.EventProcessingSeconds.Observe(time.Since(start).Seconds())
	}()

	rec, err := extract.Extract(ev)
	if err != nil {
		metrics.ExtractionFailures.WithLabelValues(extractionFailureReason(err)).Inc()
		c.logger.Warn("event dropped during extraction",
			logging.EventID(ev.ID),
			logging.Error(err),
		)
		return
	}

	c.store.AddRaw(ev)
	c.store.AddPrepared(rec)

	ctx := context.Background()
	userSettings, err := c.settings.Load(ctx, c.user.ID)
	if err != nil {
		c.logger.Warn("settings load failed, using defaults",
			logging.UserID(c.user.ID),
			logging.Error(err),
		)
		userSettings = models.DefaultSettings(c.user.ID)
	}

	anomaly := c.detector.Detect(rec, &userSettings)
	if anomaly == nil {
		return
	}

	c.store.AddAnomaly(*anomaly)
	metrics.AnomaliesDetected.WithLabelValues(string(anomaly.Category), string(anomaly.Severity)).Inc()
	c.logger.Info("anomaly detected",
		logging.AnomalyID(anomaly.ID),
		logging.EventID(ev.ID),
		logging.Category(string(anomaly.Category)),
		logging.Score(anomaly.Score),
	)

	if c.notifier != nil {
		if err := c.notifier.AnomalyDetected(ctx, *anomaly); err != nil {
			metrics.NotifyFailures.Inc()
			c.logger.Warn("anomaly publish failed", logging.AnomalyID(anomaly.ID), logging.Error(err))
		}
	}
	if c.archiver != nil {
		if err := c.archiver.Index(ctx, *anomaly); err != nil {
			metrics.ArchiveFailures.Inc()
			c.logger.Warn("anomaly archive failed", logging.AnomalyID(anomaly.ID), logging.Error(err))
		}
	}

	alertID := c.alerts.Raise(*anomaly, c.user)
	c.notifyAlertCreated(ctx, alertID)
}

// extractionFailureReason labels the dropped-event metric by error type.
func extractionFailureReason(err error) string {
	var validation *models.ValidationError
	if errors.As(err, &validation) {
		return "validation"
	}
	var unknown *models.UnknownCategoryError
	if errors.As(err, &unknown) {
		return "unknown_category"
	}
	return "other"
}

// UpdateGlobalSensitivity replaces the process-wide detection sensitivity.
func (c *Controller) UpdateGlobalSensitivity(s float64) {
	c.detector.SetGlobalSensitivity(s)
	c.logger.Info("global sensitivity updated", slog.Float64("sensitivity", s))
}

// GlobalSensitivity returns the current process-wide sensitivity.
func (c *Controller) GlobalSensitivity() float64 {
	return c.detector.GlobalSensitivity()
}

// AnomaliesInPeriod returns the anomalies visible to the role inside the
// inclusive [start, end] window. Zero times leave that side unbounded.
func (c *Controller) AnomaliesInPeriod(start, end time.Time, role models.Role) []models.Anomaly {
	return c.store.Anomalies(role, start, end)
}

// TransitionAlert applies a lifecycle transition and announces the change.
// An unknown alert id returns an error wrapping models.ErrAlertNotFound.
func (c *Controller) TransitionAlert(ctx context.Context, alertID string, status models.AlertStatus) error {
	if err := c.alerts.SetStatus(alertID, status); err != nil {
		return err
	}

	if c.notifier != nil {
		if a, ok := c.alerts.Get(alertID); ok {
			if err := c.notifier.AlertUpdated(ctx, a); err != nil {
				metrics.NotifyFailures.Inc()
				c.logger.Warn("alert update publish failed", logging.AlertID(alertID), logging.Error(err))
			}
		}
	}
	return nil
}

// AcknowledgeAlert marks an alert acknowledged.
func (c *Controller) AcknowledgeAlert(ctx context.Context, alertID string) error {
	return c.TransitionAlert(ctx, alertID, models.AlertStatusAcknowledged)
}

// AlertForAnomaly returns the alert belonging to an anomaly, raising one on
// first access. Unknown ids and anomalies outside the user's category
// return models.ErrNotFound.
func (c *Controller) AlertForAnomaly(ctx context.Context, anomalyID string, user models.User) (models.Alert, error) {
	anomaly, ok := c.store.Anomaly(anomalyID)
	if !ok {
		return models.Alert{}, models.ErrNotFound
	}

	category, ok := models.CategoryForRole(user.Role)
	if !ok || anomaly.Category != category {
		return models.Alert{}, models.ErrNotFound
	}

	if a, ok := c.alerts.AlertForAnomaly(anomalyID); ok {
		return a, nil
	}

	alertID := c.alerts.Raise(anomaly, user)
	c.notifyAlertCreated(ctx, alertID)

	a, _ := c.alerts.Get(alertID)
	return a, nil
}

// TriggerRetraining recalibrates the global sensitivity from the full
// history of the role's category and returns the resulting value. Unknown
// roles and empty histories leave the sensitivity unchanged.
func (c *Controller) TriggerRetraining(role models.Role) float64 {
	category, ok := models.CategoryForRole(role)
	if !ok {
		c.logger.Warn("retraining skipped: unknown role", logging.Role(string(role)))
		return c.detector.GlobalSensitivity()
	}

	var filtered []models.PreparedRecord
	for _, rec := range c.store.Historical(time.Time{}, time.Time{}) {
		if rec.Category == category {
			filtered = append(filtered, rec)
		}
	}

	c.detector.Train(filtered)

	sensitivity := c.detector.GlobalSensitivity()
	c.logger.Info("retraining complete",
		logging.Category(string(category)),
		slog.Int("records", len(filtered)),
		slog.Float64("sensitivity", sensitivity),
	)
	return sensitivity
}

func (c *Controller) notifyAlertCreated(ctx context.Context, alertID string) {
	if c.notifier == nil {
		return
	}
	a, ok := c.alerts.Get(alertID)
	if !ok {
		return
	}
	if err := c.notifier.AlertCreated(ctx, a); err != nil {
		metrics.NotifyFailures.Inc()
		c.logger.Warn("alert publish failed", logging.AlertID(alertID), logging.Error(err))
	}
}

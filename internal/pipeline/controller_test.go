package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch-systems/driftwatch/internal/alert"
	"github.com/driftwatch-systems/driftwatch/internal/detect"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/notify"
	"github.com/driftwatch-systems/driftwatch/internal/settings"
	"github.com/driftwatch-systems/driftwatch/internal/store"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

var pipelineUser = models.User{ID: "pipeline", Username: "pipeline", Role: models.RoleSecurity}

// recordingArchiver records indexed anomalies and can be forced to fail.
type recordingArchiver struct {
	mu      sync.Mutex
	indexed []models.Anomaly
	err     error
}

func (a *recordingArchiver) Index(ctx context.Context, anomaly models.Anomaly) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.indexed = append(a.indexed, anomaly)
	return nil
}

func (a *recordingArchiver) snapshot() []models.Anomaly {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Anomaly(nil), a.indexed...)
}

// failingRepository simulates an unreachable settings backend.
type failingRepository struct{}

func (failingRepository) Load(ctx context.Context, userID string) (models.DetectionSettings, error) {
	return models.DetectionSettings{}, errors.New("backend unreachable")
}

func (failingRepository) Save(ctx context.Context, s models.DetectionSettings) error {
	return errors.New("backend unreachable")
}

type fixture struct {
	controller *Controller
	store      *store.Store
	detector   *detect.Detector
	alerts     *alert.Manager
	notifier   *notify.Recorder
	archiver   *recordingArchiver
	settings   settings.Repository
}

func newFixture(t *testing.T, repo settings.Repository) *fixture {
	t.Helper()
	if repo == nil {
		repo = settings.NewMemoryRepository()
	}

	f := &fixture{
		store:    store.NewStore(),
		detector: detect.New(models.DefaultSensitivity),
		alerts:   alert.NewManager(0, nil),
		notifier: notify.NewRecorder(),
		archiver: &recordingArchiver{},
		settings: repo,
	}
	f.controller = New(Config{
		Store:    f.store,
		Detector: f.detector,
		Settings: f.settings,
		Alerts:   f.alerts,
		Notifier: f.notifier,
		Archiver: f.archiver,
		User:     pipelineUser,
	})
	return f
}

func trafficEvent(id string, volume float64) models.RawEvent {
	return models.RawEvent{
		ID:        id,
		Timestamp: base,
		Source:    "source_1",
		Attributes: map[string]string{
			"type":   "3",
			"volume": fmt.Sprintf("%v", volume),
			"ip":     "192.168.0.7",
		},
	}
}

func sensorEvent(id string, temperature string) models.RawEvent {
	return models.RawEvent{
		ID:        id,
		Timestamp: base,
		Source:    "source_2",
		Attributes: map[string]string{
			"type":        "1",
			"temperature": temperature,
		},
	}
}

func TestOnEventDetectsAndRaisesAlert(t *testing.T) {
	f := newFixture(t, nil)

	// Default sensitivity 0.5 puts the traffic threshold at 600.
	f.controller.OnEvent(trafficEvent("ev-1", 2000))

	raw, prepared, anomalies := f.store.Counts()
	assert.Equal(t, 1, raw)
	assert.Equal(t, 1, prepared)
	require.Equal(t, 1, anomalies)

	stored := f.store.Anomalies(models.RoleSecurity, time.Time{}, time.Time{})
	require.Len(t, stored, 1)
	anomaly := stored[0]
	assert.Equal(t, "ev-1", anomaly.DataID)
	assert.Equal(t, models.CategoryTraffic, anomaly.Category)
	assert.Equal(t, models.SeverityHigh, anomaly.Severity)
	assert.InDelta(t, 2000.0/600.0*100, anomaly.Score, 1e-6)

	alerts := f.alerts.List()
	require.Len(t, alerts, 1)
	assert.Equal(t, anomaly.ID, alerts[0].AnomalyID)
	assert.Equal(t, models.AlertStatusOpen, alerts[0].Status)
	assert.Contains(t, alerts[0].Message, "Alert for user pipeline")

	assert.Len(t, f.notifier.OnSubject(notify.SubjectAnomaliesDetected), 1)
	assert.Len(t, f.notifier.OnSubject(notify.SubjectAlertsCreated), 1)

	indexed := f.archiver.snapshot()
	require.Len(t, indexed, 1)
	assert.Equal(t, anomaly.ID, indexed[0].ID)
}

func TestOnEventNormalRecordStoresDataOnly(t *testing.T) {
	f := newFixture(t, nil)

	// Threshold at sensitivity 0.5 is 90; 10 is well inside the band.
	f.controller.OnEvent(sensorEvent("ev-1", "10"))

	raw, prepared, anomalies := f.store.Counts()
	assert.Equal(t, 1, raw)
	assert.Equal(t, 1, prepared)
	assert.Zero(t, anomalies)
	assert.Empty(t, f.alerts.List())
	assert.Empty(t, f.notifier.Published())
}

func TestOnEventStoresNothingOnExtractionFailure(t *testing.T) {
	f := newFixture(t, nil)

	f.controller.OnEvent(sensorEvent("ev-1", "not-a-number"))
	f.controller.OnEvent(models.RawEvent{
		ID:         "ev-2",
		Timestamp:  base,
		Attributes: map[string]string{"type": "9"},
	})

	raw, prepared, anomalies := f.store.Counts()
	assert.Zero(t, raw)
	assert.Zero(t, prepared)
	assert.Zero(t, anomalies)
}

func TestOnEventFallsBackToDefaultsWhenSettingsFail(t *testing.T) {
	f := newFixture(t, failingRepository{})

	f.controller.OnEvent(trafficEvent("ev-1", 2000))

	_, _, anomalies := f.store.Counts()
	assert.Equal(t, 1, anomalies)
}

func TestOnEventHonorsPerUserSensitivity(t *testing.T) {
	repo := settings.NewMemoryRepository()
	require.NoError(t, repo.Save(context.Background(), models.DetectionSettings{
		UserID:           pipelineUser.ID,
		Sensitivity:      0.1,
		MonitoredSources: []string{models.SourceWildcard},
	}))
	f := newFixture(t, repo)

	// At sensitivity 0.1 the traffic threshold is 1000, so 900 is normal;
	// the default 0.5 would have flagged it.
	f.controller.OnEvent(trafficEvent("ev-1", 900))

	_, _, anomalies := f.store.Counts()
	assert.Zero(t, anomalies)
}

func TestOnEventSurvivesCollaboratorFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.notifier.Err = errors.New("bus down")
	f.archiver.err = errors.New("index down")

	f.controller.OnEvent(trafficEvent("ev-1", 2000))

	_, _, anomalies := f.store.Counts()
	assert.Equal(t, 1, anomalies)
	assert.Len(t, f.alerts.List(), 1)
}

func TestOnEventWithoutCollaborators(t *testing.T) {
	f := newFixture(t, nil)
	f.controller.notifier = nil
	f.controller.archiver = nil

	assert.NotPanics(t, func() {
		f.controller.OnEvent(trafficEvent("ev-1", 2000))
	})
	assert.Len(t, f.alerts.List(), 1)
}

func TestTransitionAlertPublishesUpdate(t *testing.T) {
	f := newFixture(t, nil)
	f.controller.OnEvent(trafficEvent("ev-1", 2000))

	alerts := f.alerts.List()
	require.Len(t, alerts, 1)

	err := f.controller.TransitionAlert(context.Background(), alerts[0].ID, models.AlertStatusConfirmed)
	require.NoError(t, err)

	got, ok := f.alerts.Get(alerts[0].ID)
	require.True(t, ok)
	assert.Equal(t, models.AlertStatusConfirmed, got.Status)

	updates := f.notifier.OnSubject(notify.SubjectAlertsUpdated)
	require.Len(t, updates, 1)
	published, ok := updates[0].Payload.(models.Alert)
	require.True(t, ok)
	assert.Equal(t, models.AlertStatusConfirmed, published.Status)
}

func TestTransitionAlertUnknownID(t *testing.T) {
	f := newFixture(t, nil)

	err := f.controller.TransitionAlert(context.Background(), "missing", models.AlertStatusConfirmed)
	assert.ErrorIs(t, err, models.ErrAlertNotFound)
	assert.Empty(t, f.notifier.OnSubject(notify.SubjectAlertsUpdated))
}

func TestAcknowledgeAlert(t *testing.T) {
	f := newFixture(t, nil)
	f.controller.OnEvent(trafficEvent("ev-1", 2000))

	alerts := f.alerts.List()
	require.Len(t, alerts, 1)

	require.NoError(t, f.controller.AcknowledgeAlert(context.Background(), alerts[0].ID))

	got, _ := f.alerts.Get(alerts[0].ID)
	assert.Equal(t, models.AlertStatusAcknowledged, got.Status)
}

func TestAlertForAnomalyLazyCreation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	anomaly := models.Anomaly{
		ID:          "an-1",
		DataID:      "ev-1",
		DetectedAt:  base,
		Score:       180,
		Description: "traffic: Volume 1800 exceeds threshold 600",
		Category:    models.CategoryTraffic,
		Severity:    models.SeverityHigh,
	}
	f.store.AddAnomaly(anomaly)

	viewer := models.User{ID: "u-1", Username: "analyst", Role: models.RoleSecurity}

	first, err := f.controller.AlertForAnomaly(ctx, "an-1", viewer)
	require.NoError(t, err)
	assert.Equal(t, "an-1", first.AnomalyID)
	assert.Equal(t, models.AlertStatusOpen, first.Status)
	assert.Contains(t, first.Message, "analyst")

	// Second access returns the same alert without raising another.
	second, err := f.controller.AlertForAnomaly(ctx, "an-1", viewer)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.alerts.List(), 1)
	assert.Len(t, f.notifier.OnSubject(notify.SubjectAlertsCreated), 1)
}

func TestAlertForAnomalyUnknownID(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.controller.AlertForAnomaly(context.Background(), "missing", pipelineUser)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAlertForAnomalyRoleMismatch(t *testing.T) {
	f := newFixture(t, nil)
	f.store.AddAnomaly(models.Anomaly{
		ID:         "an-1",
		DetectedAt: base,
		Category:   models.CategoryTraffic,
	})

	fraudViewer := models.User{ID: "u-2", Username: "manager", Role: models.RoleFraud}

	_, err := f.controller.AlertForAnomaly(context.Background(), "an-1", fraudViewer)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, f.alerts.List())
}

func TestTriggerRetrainingConverges(t *testing.T) {
	f := newFixture(t, nil)

	// Ten transaction records of which exactly five exceed the upper
	// bound at sensitivity 0.5. The bound rises with sensitivity, so the
	// flagged count crosses the target at s = 0.501 and calibration
	// settles there.
	for i := 0; i < 5; i++ {
		f.store.AddPrepared(models.PreparedRecord{
			ID: fmt.Sprintf("slow-%d", i), Timestamp: base,
			Category: models.CategoryTransaction, Features: []float64{11.02},
		})
		f.store.AddPrepared(models.PreparedRecord{
			ID: fmt.Sprintf("ok-%d", i), Timestamp: base,
			Category: models.CategoryTransaction, Features: []float64{8},
		})
	}

	got := f.controller.TriggerRetraining(models.RoleFraud)
	assert.InDelta(t, 0.501, got, 1e-4)
	assert.Equal(t, got, f.detector.GlobalSensitivity())
}

func TestTriggerRetrainingFiltersByRoleCategory(t *testing.T) {
	f := newFixture(t, nil)

	// Only transaction records exist, so retraining for equipment (sensor)
	// sees an empty set and leaves the sensitivity unchanged.
	f.store.AddPrepared(models.PreparedRecord{
		ID: "tx-1", Timestamp: base,
		Category: models.CategoryTransaction, Features: []float64{12},
	})

	before := f.detector.GlobalSensitivity()
	got := f.controller.TriggerRetraining(models.RoleEquipment)
	assert.Equal(t, before, got)
}

func TestTriggerRetrainingUnknownRole(t *testing.T) {
	f := newFixture(t, nil)

	before := f.detector.GlobalSensitivity()
	got := f.controller.TriggerRetraining(models.Role("intern"))
	assert.Equal(t, before, got)
}

func TestUpdateGlobalSensitivity(t *testing.T) {
	f := newFixture(t, nil)

	f.controller.UpdateGlobalSensitivity(0.8)
	assert.Equal(t, 0.8, f.controller.GlobalSensitivity())
}

func TestAnomaliesInPeriodRoleScoped(t *testing.T) {
	f := newFixture(t, nil)
	f.store.AddAnomaly(models.Anomaly{ID: "an-1", DetectedAt: base, Category: models.CategoryTraffic})
	f.store.AddAnomaly(models.Anomaly{ID: "an-2", DetectedAt: base, Category: models.CategorySensor})

	got := f.controller.AnomaliesInPeriod(time.Time{}, time.Time{}, models.RoleSecurity)
	require.Len(t, got, 1)
	assert.Equal(t, "an-1", got[0].ID)
}

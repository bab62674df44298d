// Package notify announces alert and anomaly lifecycle events on the
// message bus so downstream consumers (dashboards, responders) can react
// without polling the API.
package notify

import (
	"context"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// Subject constants for the DriftWatch message bus.
// Follow the pattern: {domain}.{resource}.{action}
const (
	// SubjectAnomaliesDetected carries each anomaly as the detector flags it.
	SubjectAnomaliesDetected = "driftwatch.anomalies.detected"

	// Alert lifecycle subjects.
	SubjectAlertsCreated = "driftwatch.alerts.created" // New alert raised
	SubjectAlertsUpdated = "driftwatch.alerts.updated" // Alert status changed
)

// Notifier publishes pipeline lifecycle events. Publish failures are the
// caller's to log and count; they must never stop the pipeline.
// Implementations must be safe for concurrent use.
type Notifier interface {
	AnomalyDetected(ctx context.Context, anomaly models.Anomaly) error
	AlertCreated(ctx context.Context, alert models.Alert) error
	AlertUpdated(ctx context.Context, alert models.Alert) error
}

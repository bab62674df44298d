package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// Publisher publishes lifecycle events to NATS subjects as JSON.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher wraps an established NATS connection.
func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// AnomalyDetected publishes a detected anomaly.
func (p *Publisher) AnomalyDetected(ctx context.Context, anomaly models.Anomaly) error {
	return p.publish(ctx, SubjectAnomaliesDetected, anomaly)
}

// AlertCreated publishes a newly raised alert.
func (p *Publisher) AlertCreated(ctx context.Context, alert models.Alert) error {
	return p.publish(ctx, SubjectAlertsCreated, alert)
}

// AlertUpdated publishes an alert whose status changed.
func (p *Publisher) AlertUpdated(ctx context.Context, alert models.Alert) error {
	return p.publish(ctx, SubjectAlertsUpdated, alert)
}

// publish marshals data to JSON and publishes to the specified subject.
func (p *Publisher) publish(ctx context.Context, subject string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return p.conn.Publish(subject, bytes)
}

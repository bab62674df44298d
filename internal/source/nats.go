package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/driftwatch-systems/driftwatch/internal/metrics"
	"github.com/driftwatch-systems/driftwatch/internal/models"
)

const (
	// RawEventsSubject carries JSON-encoded raw events from external
	// producers.
	RawEventsSubject = "telemetry.events.raw"

	// IngestQueue load-balances raw events across service instances.
	IngestQueue = "driftwatch-ingest"
)

// NATSSource feeds the pipeline from a NATS subject instead of the
// simulator. Malformed payloads are logged and dropped.
type NATSSource struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger

	mu       sync.Mutex
	listener Listener
	sub      *nats.Subscription
}

// NewNATSSource wraps an established NATS connection. An empty subject
// falls back to RawEventsSubject.
func NewNATSSource(conn *nats.Conn, subject string, logger *slog.Logger) *NATSSource {
	if subject == "" {
		subject = RawEventsSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSource{conn: conn, subject: subject, logger: logger}
}

// Connect creates the queue subscription.
func (n *NATSSource) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sub != nil {
		return fmt.Errorf("nats source already connected")
	}

	sub, err := n.conn.QueueSubscribe(n.subject, IngestQueue, func(msg *nats.Msg) {
		n.handleMessage(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", n.subject, err)
	}
	n.sub = sub

	n.logger.Info("subscribed to raw events",
		slog.String("subject", n.subject),
		slog.String("queue", IngestQueue),
	)
	return nil
}

// handleMessage decodes one payload and hands it to the listener.
func (n *NATSSource) handleMessage(data []byte) {
	metrics.EventsReceived.Inc()

	var ev models.RawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		metrics.EventsDropped.Inc()
		n.logger.Warn("dropping malformed event payload", slog.String("error", err.Error()))
		return
	}

	n.mu.Lock()
	fn := n.listener
	n.mu.Unlock()

	if fn == nil {
		metrics.EventsDropped.Inc()
		n.logger.Warn("event dropped, no listener registered", slog.String("event_id", ev.ID))
		return
	}
	deliver(fn, ev, n.logger)
}

// RegisterListener replaces the current listener.
func (n *NATSSource) RegisterListener(fn Listener) {
	n.mu.Lock()
	n.listener = fn
	n.mu.Unlock()
}

// Stop unsubscribes. Handler calls already in flight finish normally.
func (n *NATSSource) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sub == nil {
		return
	}
	if err := n.sub.Unsubscribe(); err != nil {
		n.logger.Warn("unsubscribe failed", slog.String("error", err.Error()))
	}
	n.sub = nil
}

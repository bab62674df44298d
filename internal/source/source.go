// Package source produces the raw telemetry events that feed the pipeline.
//
// Sources hold a single listener slot: RegisterListener overwrites any
// previous registration, and events produced while no listener is registered
// are counted and dropped. A panicking listener never stops the stream.
package source

import (
	"context"
	"log/slog"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// Listener consumes one raw event. The pipeline registers exactly one.
type Listener func(models.RawEvent)

// Source is a stream of raw telemetry events.
type Source interface {
	// Connect starts event delivery. It returns an error if the source is
	// already connected.
	Connect(ctx context.Context) error

	// RegisterListener replaces the current listener. The last registration
	// wins.
	RegisterListener(fn Listener)

	// Stop halts delivery. Events already handed to the listener are
	// unaffected.
	Stop()
}

// deliver invokes the listener, containing any panic so one bad event cannot
// kill the stream.
func deliver(fn Listener, ev models.RawEvent, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listener panicked",
				slog.String("event_id", ev.ID),
				slog.Any("panic", r),
			)
		}
	}()
	fn(ev)
}

// Package settings persists per-user detection settings.
//
// All backends share one contract: Load for a user with nothing stored
// returns models.DefaultSettings, never an error, and Load(Save(x)) returns
// x. Repositories do not validate sensitivity bounds; out-of-range values
// are a caller error caught at the API boundary.
package settings

import (
	"context"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// Repository stores detection settings keyed by user id.
type Repository interface {
	Load(ctx context.Context, userID string) (models.DetectionSettings, error)
	Save(ctx context.Context, s models.DetectionSettings) error
}

// clone copies the settings so stored state and caller state never alias.
func clone(s models.DetectionSettings) models.DetectionSettings {
	s.MonitoredSources = append([]string(nil), s.MonitoredSources...)
	return s
}

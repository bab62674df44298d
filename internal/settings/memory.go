package settings

import (
	"context"
	"sync"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// MemoryRepository keeps settings in process memory. Offline runs and tests
// use it in place of a persistent backend.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[string]models.DetectionSettings
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		data: make(map[string]models.DetectionSettings),
	}
}

func (r *MemoryRepository) Load(ctx context.Context, userID string) (models.DetectionSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.data[userID]
	if !ok {
		return models.DefaultSettings(userID), nil
	}
	return clone(s), nil
}

func (r *MemoryRepository) Save(ctx context.Context, s models.DetectionSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[s.UserID] = clone(s)
	return nil
}

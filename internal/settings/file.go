package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// storedSettings is the on-disk shape; the user id is the map key.
type storedSettings struct {
	Sensitivity      float64  `yaml:"sensitivity"`
	MonitoredSources []string `yaml:"monitored_sources"`
}

// FileRepository persists settings as a single YAML document keyed by user
// id. It is the default backend. Writes are read-modify-write under a mutex,
// so one repository instance must own the file.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Load(ctx context.Context, userID string) (models.DetectionSettings, error) {
	if err := ctx.Err(); err != nil {
		return models.DetectionSettings{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.readAll()
	if err != nil {
		return models.DetectionSettings{}, err
	}

	stored, ok := all[userID]
	if !ok {
		return models.DefaultSettings(userID), nil
	}
	return models.DetectionSettings{
		UserID:           userID,
		Sensitivity:      stored.Sensitivity,
		MonitoredSources: append([]string(nil), stored.MonitoredSources...),
	}, nil
}

func (r *FileRepository) Save(ctx context.Context, s models.DetectionSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.readAll()
	if err != nil {
		return err
	}
	all[s.UserID] = storedSettings{
		Sensitivity:      s.Sensitivity,
		MonitoredSources: append([]string(nil), s.MonitoredSources...),
	}

	data, err := yaml.Marshal(all)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

// readAll parses the whole file. A missing file is an empty store.
func (r *FileRepository) readAll() (map[string]storedSettings, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]storedSettings), nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	all := make(map[string]storedSettings)
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}
	return all, nil
}

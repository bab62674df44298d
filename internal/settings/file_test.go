package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

func TestFileRepositoryMissingFileIsEmpty(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "settings.yaml"))

	s, err := repo.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings("user-1"), s)
}

func TestFileRepositoryRoundTrip(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "settings.yaml"))

	in := models.DetectionSettings{
		UserID:           "user-1",
		Sensitivity:      0.3,
		MonitoredSources: []string{"source_2"},
	}
	require.NoError(t, repo.Save(context.Background(), in))

	out, err := repo.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFileRepositorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	in := models.DetectionSettings{
		UserID:           "user-1",
		Sensitivity:      0.8,
		MonitoredSources: []string{"source_1"},
	}
	require.NoError(t, NewFileRepository(path).Save(context.Background(), in))

	out, err := NewFileRepository(path).Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFileRepositoryKeepsOtherUsers(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "settings.yaml"))
	ctx := context.Background()

	first := models.DetectionSettings{UserID: "user-1", Sensitivity: 0.2, MonitoredSources: []string{"source_1"}}
	second := models.DetectionSettings{UserID: "user-2", Sensitivity: 0.9, MonitoredSources: []string{"source_2"}}
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	first.Sensitivity = 0.4
	require.NoError(t, repo.Save(ctx, first))

	out, err := repo.Load(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, second, out)
}

func TestFileRepositoryCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "settings.yaml")
	repo := NewFileRepository(path)

	in := models.DetectionSettings{UserID: "user-1", Sensitivity: 0.5, MonitoredSources: []string{"any"}}
	require.NoError(t, repo.Save(context.Background(), in))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileRepositoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{ unclosed"), 0o600))

	_, err := NewFileRepository(path).Load(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestFileRepositoryHonorsContext(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "settings.yaml"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Load(ctx, "user-1")
	assert.ErrorIs(t, err, context.Canceled)
}

package settings

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestRedisRepositoryDefaults(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	repo := NewRedisRepository(client)

	s, err := repo.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings("nobody"), s)
}

func TestRedisRepositoryRoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	repo := NewRedisRepository(client)
	ctx := context.Background()

	in := models.DetectionSettings{
		UserID:           "user-1",
		Sensitivity:      0.9,
		MonitoredSources: []string{"source_3"},
	}
	require.NoError(t, repo.Save(ctx, in))

	out, err := repo.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// One namespaced key per user.
	assert.True(t, mr.Exists("driftwatch:settings:user-1"))
}

func TestRedisRepositoryCorruptValue(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	require.NoError(t, mr.Set("driftwatch:settings:user-1", "not json"))

	repo := NewRedisRepository(client)
	_, err := repo.Load(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestDialRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := DialRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestDialRedisInvalidURL(t *testing.T) {
	_, err := DialRedis(context.Background(), "://not-a-url")
	assert.Error(t, err)
}

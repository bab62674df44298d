package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

const redisKeyPrefix = "driftwatch:settings:"

// RedisRepository stores one JSON value per user under
// driftwatch:settings:<user>.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository wraps an established client.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

// DialRedis connects to the given URL and verifies the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func (r *RedisRepository) Load(ctx context.Context, userID string) (models.DetectionSettings, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.DefaultSettings(userID), nil
		}
		return models.DetectionSettings{}, fmt.Errorf("load settings for %s: %w", userID, err)
	}

	var s models.DetectionSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return models.DetectionSettings{}, fmt.Errorf("decode settings for %s: %w", userID, err)
	}
	return s, nil
}

func (r *RedisRepository) Save(ctx context.Context, s models.DetectionSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings for %s: %w", s.UserID, err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+s.UserID, data, 0).Err(); err != nil {
		return fmt.Errorf("save settings for %s: %w", s.UserID, err)
	}
	return nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

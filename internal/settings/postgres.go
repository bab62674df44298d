package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// PostgresRepository persists settings in the detection_settings table.
// Schema lives under migrations/ and is applied at startup.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) Load(ctx context.Context, userID string) (models.DetectionSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT sensitivity, monitored_sources
		FROM detection_settings
		WHERE user_id = $1
	`

	s := models.DetectionSettings{UserID: userID}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&s.Sensitivity, &s.MonitoredSources)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DefaultSettings(userID), nil
		}
		return models.DetectionSettings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) Save(ctx context.Context, s models.DetectionSettings) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO detection_settings (user_id, sensitivity, monitored_sources, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET sensitivity = EXCLUDED.sensitivity,
		    monitored_sources = EXCLUDED.monitored_sources,
		    updated_at = now()
	`

	if _, err := r.pool.Exec(ctx, query, s.UserID, s.Sensitivity, s.MonitoredSources); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

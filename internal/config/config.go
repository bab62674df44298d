// Package config loads DriftWatch service configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Source     SourceConfig     `mapstructure:"source"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Settings   SettingsConfig   `mapstructure:"settings"`
	NATS       NATSConfig       `mapstructure:"nats"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SourceConfig controls the telemetry event source.
// Mode is "simulator" (built-in generator) or "nats" (subscribe to a subject).
type SourceConfig struct {
	Mode      string        `mapstructure:"mode"`
	Interval  time.Duration `mapstructure:"interval"`
	MaxEvents int           `mapstructure:"max_events"`
	StartTime string        `mapstructure:"start_time"`
	Seed      int64         `mapstructure:"seed"`
	Subject   string        `mapstructure:"subject"`
}

type DetectorConfig struct {
	DefaultSensitivity float64 `mapstructure:"default_sensitivity"`
}

type AlertsConfig struct {
	AutoConfirmTimeout time.Duration `mapstructure:"auto_confirm_timeout"`
}

// SettingsConfig selects the per-user settings backend.
// Backend is "file", "redis" or "postgres".
type SettingsConfig struct {
	Backend  string         `mapstructure:"backend"`
	File     FileConfig     `mapstructure:"file"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type FileConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type OpenSearchConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	IndexPrefix   string `mapstructure:"index_prefix"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// PipelineConfig identifies the account alerts are raised for when events
// flow through the background pipeline.
type PipelineConfig struct {
	UserID   string `mapstructure:"user_id"`
	Username string `mapstructure:"username"`
}

// ConnString builds a PostgreSQL connection string from the settings.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8096)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("source.mode", "simulator")
	v.SetDefault("source.interval", "1s")
	v.SetDefault("source.max_events", 300)
	v.SetDefault("source.start_time", "2025-01-01T00:00:00Z")
	v.SetDefault("source.seed", 0)
	v.SetDefault("source.subject", "telemetry.events.raw")

	v.SetDefault("detector.default_sensitivity", 0.5)

	v.SetDefault("alerts.auto_confirm_timeout", "120s")

	v.SetDefault("settings.backend", "file")
	v.SetDefault("settings.file.path", "user_settings.yaml")
	v.SetDefault("settings.redis.url", "redis://localhost:6379/0")
	v.SetDefault("settings.postgres.host", "localhost")
	v.SetDefault("settings.postgres.port", 5432)
	v.SetDefault("settings.postgres.user", "driftwatch")
	v.SetDefault("settings.postgres.password", "")
	v.SetDefault("settings.postgres.database", "driftwatch")
	v.SetDefault("settings.postgres.sslmode", "disable")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.tls_skip_verify", true)
	v.SetDefault("opensearch.index_prefix", "driftwatch-anomalies")

	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("pipeline.user_id", "pipeline")
	v.SetDefault("pipeline.username", "pipeline")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/driftwatch")
	}

	// Environment variables override (DRIFTWATCH_SERVER_PORT, etc.)
	v.SetEnvPrefix("DRIFTWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

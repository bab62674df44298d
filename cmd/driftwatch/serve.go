package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/driftwatch-systems/driftwatch/internal/alert"
	"github.com/driftwatch-systems/driftwatch/internal/archive"
	"github.com/driftwatch-systems/driftwatch/internal/auth"
	"github.com/driftwatch-systems/driftwatch/internal/config"
	"github.com/driftwatch-systems/driftwatch/internal/detect"
	"github.com/driftwatch-systems/driftwatch/internal/handlers"
	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/middleware"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/notify"
	"github.com/driftwatch-systems/driftwatch/internal/pipeline"
	"github.com/driftwatch-systems/driftwatch/internal/server"
	"github.com/driftwatch-systems/driftwatch/internal/settings"
	"github.com/driftwatch-systems/driftwatch/internal/source"
	"github.com/driftwatch-systems/driftwatch/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection pipeline and dashboard API",
	Long: `Starts the telemetry source, runs incoming events through the detection
pipeline and serves the dashboard REST API until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("driftwatch"))
	logging.SetDefault(logger)

	slog.Info("Starting DriftWatch",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("source_mode", cfg.Source.Mode),
		slog.String("settings_backend", cfg.Settings.Backend),
	)

	repo, closeRepo, err := buildSettingsRepository(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	// NATS carries alert notifications out and, in nats source mode, raw
	// events in.
	var (
		conn     *nats.Conn
		notifier notify.Notifier
	)
	if cfg.NATS.Enabled {
		conn, err = nats.Connect(cfg.NATS.URL, nats.Name("driftwatch"))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer conn.Close()
		notifier = notify.NewPublisher(conn)
		slog.Info("NATS notifications enabled", slog.String("url", cfg.NATS.URL))
	} else {
		slog.Info("NATS disabled")
	}

	var archiver pipeline.Archiver
	if cfg.OpenSearch.Enabled {
		indexer, err := archive.NewIndexer(archive.Config{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			IndexPrefix:   cfg.OpenSearch.IndexPrefix,
		}, logger.Logger)
		if err != nil {
			slog.Warn("OpenSearch archive unavailable, anomalies will not be indexed",
				slog.String("error", err.Error()),
			)
		} else {
			archiver = indexer
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := indexer.Close(ctx); err != nil {
					slog.Warn("archive close failed", slog.String("error", err.Error()))
				}
			}()
			slog.Info("OpenSearch archive enabled", slog.String("url", cfg.OpenSearch.URL))
		}
	} else {
		slog.Info("OpenSearch archive disabled")
	}

	authSvc, err := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("initialize auth: %w", err)
	}

	st := store.NewStore()
	detector := detect.New(cfg.Detector.DefaultSensitivity)
	alerts := alert.NewManager(cfg.Alerts.AutoConfirmTimeout, logger.Logger)

	controller := pipeline.New(pipeline.Config{
		Store:    st,
		Detector: detector,
		Settings: repo,
		Alerts:   alerts,
		Notifier: notifier,
		Archiver: archiver,
		Logger:   logger.Logger,
		User: models.User{
			ID:       cfg.Pipeline.UserID,
			Username: cfg.Pipeline.Username,
			Role:     models.RoleSecurity,
		},
	})

	src, err := buildSource(cfg, conn, logger.Logger)
	if err != nil {
		return err
	}
	src.RegisterListener(controller.OnEvent)

	sourceCtx, stopSource := context.WithCancel(context.Background())
	defer stopSource()
	if err := src.Connect(sourceCtx); err != nil {
		return fmt.Errorf("start event source: %w", err)
	}
	defer src.Stop()

	handler := handlers.NewHandler(handlers.Config{
		Controller: controller,
		Store:      st,
		Alerts:     alerts,
		Settings:   repo,
		Auth:       authSvc,
		Logger:     logger.Logger,
	})
	router := server.NewRouter(handler, middleware.NewAuth(authSvc), logger.Logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("DriftWatch API listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}

// buildSettingsRepository selects the settings backend. The returned func
// releases backend resources and is safe to call once.
func buildSettingsRepository(ctx context.Context, cfg *config.Config) (settings.Repository, func(), error) {
	switch cfg.Settings.Backend {
	case "file", "":
		slog.Info("Using file settings backend", slog.String("path", cfg.Settings.File.Path))
		return settings.NewFileRepository(cfg.Settings.File.Path), func() {}, nil

	case "redis":
		client, err := settings.DialRedis(ctx, cfg.Settings.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		repo := settings.NewRedisRepository(client)
		slog.Info("Using redis settings backend", slog.String("url", cfg.Settings.Redis.URL))
		return repo, func() { repo.Close() }, nil

	case "postgres":
		connString := cfg.Settings.Postgres.ConnString()

		slog.Info("Running database migrations")
		m, err := migrate.New("file://migrations", connString)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize migrations: %w", err)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		m.Close()

		repo, err := settings.NewPostgresRepository(ctx, connString)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		slog.Info("Using postgres settings backend",
			slog.String("host", cfg.Settings.Postgres.Host),
			slog.String("database", cfg.Settings.Postgres.Database),
		)
		return repo, func() { repo.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown settings backend %q", cfg.Settings.Backend)
	}
}

// buildSource selects the telemetry source for serve mode.
func buildSource(cfg *config.Config, conn *nats.Conn, logger *slog.Logger) (source.Source, error) {
	switch cfg.Source.Mode {
	case "nats":
		if conn == nil {
			return nil, fmt.Errorf("source mode nats requires nats.enabled")
		}
		return source.NewNATSSource(conn, cfg.Source.Subject, logger), nil

	case "simulator", "":
		startTime, err := time.Parse(time.RFC3339, cfg.Source.StartTime)
		if err != nil {
			return nil, fmt.Errorf("invalid source.start_time: %w", err)
		}
		return source.NewSimulator(source.SimulatorConfig{
			Interval:  cfg.Source.Interval,
			MaxEvents: cfg.Source.MaxEvents,
			StartTime: startTime,
			Seed:      cfg.Source.Seed,
		}, logger), nil

	default:
		return nil, fmt.Errorf("unknown source mode %q", cfg.Source.Mode)
	}
}

// Command dosetrackd runs the dosetrack deduction engine as a daemon: it
// opens the database, migrates it, seeds the timezone setting and sweeps
// dose schedules on a fixed cadence until interrupted.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dosetrack/dosetrack"
)

type config struct {
	DatabaseURL  string // PostgreSQL DSN; empty selects SQLite
	SQLitePath   string
	Timezone     string // seeded only when the setting is unset
	SweepCadence time.Duration
	LogLevel     slog.Level
	LogFormat    string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SQLitePath:   getEnvOrDefault("DOSETRACK_DB", "dosetrack.db"),
		Timezone:     os.Getenv("DOSETRACK_TZ"),
		SweepCadence: 2 * time.Minute,
		LogLevel:     parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:    getEnvOrDefault("LOG_FORMAT", "text"),
	}
	if raw := os.Getenv("DOSETRACK_SWEEP_CADENCE"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.SweepCadence = d
		}
	}
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cfg config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func openDB(cfg config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if cfg.DatabaseURL != "" {
		return gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	}
	return gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
}

func main() {
	if err := godotenv.Load(); err != nil {
		// A missing .env file is fine; environment variables still apply.
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := loadConfig()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	store := dosetrack.NewGormStorage(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Seed the timezone setting on first run; afterwards it is owned by
	// the settings collaborator and picked up via refresh.
	if cfg.Timezone != "" {
		current, err := store.TimezoneName(ctx)
		if err != nil {
			logger.Error("failed to read timezone setting", "error", err)
			os.Exit(1)
		}
		if current == "" {
			if err := store.SetTimezoneName(ctx, cfg.Timezone); err != nil {
				logger.Error("failed to seed timezone setting", "error", err)
				os.Exit(1)
			}
			logger.Info("seeded timezone setting", "tz", cfg.Timezone)
		}
	}

	engine := dosetrack.New(store,
		dosetrack.WithLogger(logger),
		dosetrack.WithSweepCadence(cfg.SweepCadence),
	)
	if err := engine.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	logger.Info("dosetrackd running", "sweep_cadence", cfg.SweepCadence.String())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := engine.Stop(shutdownCtx); err != nil {
		logger.Warn("engine did not stop cleanly", "error", err)
	}
}

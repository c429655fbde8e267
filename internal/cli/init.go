// Package cli provides common startup utilities for cmd/kpiboard.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"kpiboard/internal/config"
	"kpiboard/internal/storage"
)

// SetupLogger initializes structured logging and sets the default logger.
func SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as the file is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitPresets opens the mapping-preset store, or returns nil when presets
// are disabled. An unopenable database is a warning, not a startup failure:
// the dashboard works without saved presets.
func InitPresets(logger *slog.Logger, dbPath string) *storage.PresetRepository {
	if dbPath == "" {
		logger.Info("Mapping presets disabled (no PRESET_DB_PATH)")
		return nil
	}
	repo, err := storage.NewPresetRepository(dbPath)
	if err != nil {
		logger.Warn("Failed to open preset store, continuing without presets", "error", err, "db_path", dbPath)
		return nil
	}
	logger.Info("Preset store ready", "db_path", dbPath)
	return repo
}

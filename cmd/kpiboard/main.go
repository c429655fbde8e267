package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kpiboard/internal/amqp"
	"kpiboard/internal/cache"
	"kpiboard/internal/cli"
	gsheet "kpiboard/internal/dataset/google"
	mem "kpiboard/internal/dataset/memory"
	apphttp "kpiboard/internal/http"
	"kpiboard/internal/session"
)

func main() {
	logger := cli.SetupLogger()
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	sessions := session.NewStore(cfg.MaxSessions, cfg.SessionTTL)

	// Expired sessions take their uploaded tables with them.
	cleaner := cache.NewManager()
	cleaner.Register(sessions)
	cleaner.StartCleanup(10 * time.Minute)
	defer cleaner.Stop()

	opts := apphttp.Options{
		Sessions:       sessions,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	// Mapping presets are the only thing that outlives a session.
	if repo := cli.InitPresets(logger, cfg.PresetDBPath); repo != nil {
		defer func() { _ = repo.Close() }()
		opts.Presets = repo
	}

	// Ingest notifications are best-effort: a broker that is down at boot
	// only disables publishing.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ingest notifications disabled", "error", err)
		} else {
			defer func() { _ = client.Close() }()
			opts.Publisher = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	// Optional auxiliary source besides file upload.
	switch cfg.DataSource {
	case "sheets":
		src, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets source", "error", err)
			os.Exit(1)
		}
		opts.Source = src
		opts.SourceName = "Google Sheets"
		logger.Info("Initialized Google Sheets source", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	case "sample":
		opts.Source = mem.NewSample()
		opts.SourceName = "sample data"
		logger.Info("Initialized sample data source")
	default:
		logger.Info("No auxiliary data source configured")
	}

	srv := apphttp.NewServer(":"+cfg.Port, opts)

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting kpiboard server", "port", cfg.Port, "source", cfg.DataSource)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

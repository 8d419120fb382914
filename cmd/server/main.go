// Package main is the entry point for the phonebook server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/phonebook-api/internal/config"
	"github.com/vyrodovalexey/phonebook-api/internal/model"
	"github.com/vyrodovalexey/phonebook-api/internal/server"
	"github.com/vyrodovalexey/phonebook-api/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Variables already present in the environment take priority over the file.
	if err := config.LoadDotEnv(config.EnvFile()); err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to load env file", zap.Error(err))
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use a basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.Int("probe_port", cfg.ProbePort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("seed_enabled", cfg.SeedEnabled),
	)

	ctx := context.Background()

	var reg prometheus.Registerer
	if cfg.MetricsEnabled {
		reg = prometheus.DefaultRegisterer
	}

	personStore, closeStore, err := newStore(ctx, cfg, reg)
	if err != nil {
		logger.Error("failed to create store", zap.Error(err))
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	srv := server.New(cfg, logger, personStore)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
		defer cancel()

		// Graceful shutdown
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// newStore builds the configured store backend, instruments it when reg is
// non-nil and seeds the default persons when enabled. The returned func
// releases backend resources.
func newStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (store.Store, func() error, error) {
	var (
		backend interface {
			store.Store
			store.Seeder
		}
		closeFn = func() error { return nil }
	)

	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		backend = store.NewMemoryStore()
	case config.StoreBackendSQLite:
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		backend = sqliteStore
		closeFn = sqliteStore.Close
	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrInvalidStoreBackend, cfg.StoreBackend)
	}

	var personStore store.Store = backend
	var seeder store.Seeder = backend
	if reg != nil {
		instrumented := store.NewInstrumentedStore(backend, reg)
		personStore = instrumented
		seeder = instrumented
	}

	if cfg.SeedEnabled {
		if err := store.Seed(ctx, seeder, model.DefaultPersons()); err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("seeding store: %w", err)
		}
	}

	return personStore, closeFn, nil
}

// initLogger initializes a zap logger with the specified level and encoding.
func initLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	if format == "console" {
		encoding = "console"
	}

	// Sampling stays off: every request gets its own log line.
	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling:    nil,
		Encoding:    encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}

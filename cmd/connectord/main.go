package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vaultlink/connector-core/internal/cache"
	"github.com/vaultlink/connector-core/internal/config"
	"github.com/vaultlink/connector-core/internal/connector"
	"github.com/vaultlink/connector-core/internal/database"
	"github.com/vaultlink/connector-core/internal/platform"
	"github.com/vaultlink/connector-core/internal/repository"
	"github.com/vaultlink/connector-core/internal/service"
	"github.com/vaultlink/connector-core/internal/store"
	"github.com/vaultlink/connector-core/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("database connected")

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		return err
	}

	logger.Info("migrations completed")

	// Pick the connection cache: shared when redis is configured,
	// file-backed when a path is set, in-process otherwise.
	connCache, err := newCache(cfg, logger)
	if err != nil {
		return err
	}

	// Initialize repositories
	connRepo := repository.NewConnectionRepository(db.Gorm)
	logRepo := repository.NewExecutionLogRepository(db.SQL)
	stateRepo := repository.NewOAuthStateRepository(db.SQL)

	connStore := store.New(connRepo, connCache, logger)

	// Initialize connectors
	registry := connector.NewRegistry(
		connector.NewSlackConnector(logRepo),
		connector.NewDiscordConnector(logRepo),
		connector.NewTelegramConnector(logRepo),
		connector.NewGmailConnector(cfg.GoogleClientID, cfg.GoogleClientSecret, logRepo),
		connector.NewSendGridConnector(logRepo),
		connector.NewGitHubConnector(logRepo),
		connector.NewStripeConnector(logRepo),
		connector.NewTwitterConnector(logRepo),
		connector.NewNotionConnector(logRepo),
		connector.NewDropboxConnector(logRepo),
		connector.NewOpenRouterConnector(logRepo),
	)

	logger.Info("connectors registered", zap.Strings("platforms", registry.Platforms()))

	// Initialize services
	auditor := service.NewAuditor(logRepo, logger)
	view := platform.NewView()
	manager := service.NewManager(registry, connStore, auditor, view, logger)
	oauthManager := service.NewOAuthManager(
		stateRepo,
		time.Duration(cfg.OAuthStateTTL)*time.Second,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		logger,
	)

	// Initialize watcher
	w := watcher.New(cfg, connRepo, manager, oauthManager, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start watcher in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
		cancel()

		// Wait for graceful shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && err != context.Canceled {
				logger.Error("watcher error", zap.Error(err))
			}
		}

		logger.Info("application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}

func newCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	switch {
	case cfg.RedisAddr != "":
		logger.Info("using redis connection cache", zap.String("addr", cfg.RedisAddr))
		return cache.NewRedis(cfg.RedisAddr), nil
	case cfg.CachePath != "":
		logger.Info("using sqlite connection cache", zap.String("path", cfg.CachePath))
		return cache.NewSQLite(cfg.CachePath)
	default:
		logger.Info("using in-memory connection cache")
		return cache.NewMemory(), nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parsed)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zcfg.Build()
}

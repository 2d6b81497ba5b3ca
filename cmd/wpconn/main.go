package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wpconn/internal/cache"
	"wpconn/internal/config"
	"wpconn/internal/constants"
	"wpconn/internal/database"
	"wpconn/internal/service"
	"wpconn/internal/tracing"
	"wpconn/pkg/meta"
	"wpconn/pkg/storage"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	envFile     = flag.String("env", "", "Path to an optional .env file")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("wpconn %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting wpconn")

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	var mediaIDs cache.MediaIDCache = cache.NoopCache{}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		mediaIDs = cache.NewRedisCache(rdb, cfg.Redis.TTL)
		logger.WithField("address", cfg.Redis.Address).Info("Redis media ID cache enabled")
	}

	var objects storage.Client
	if cfg.Media.StorageDir != "" {
		store, err := storage.NewLocalStore(cfg.Media.StorageDir, cfg.Media.Bucket)
		if err != nil {
			return fmt.Errorf("failed to initialize media store: %w", err)
		}
		objects = store
		logger.WithField("dir", cfg.Media.StorageDir).Info("Media object store enabled")
	} else {
		logger.Warn("No media storage directory configured, provider URLs will be stored as-is")
	}

	provider := meta.NewClient(cfg.Meta.BaseURL, cfg.Meta.Timeout)
	auditSink := service.NewAuditLogger(db, logger)
	forwarder := service.NewForwarder(constants.DefaultForwardTimeoutSec*time.Second, auditSink, logger)
	sender := service.NewSendService(db, provider, objects, mediaIDs, auditSink, nil, logger)

	eventProcessor := service.NewEventProcessor(db, forwarder, cfg.Worker, logger)
	if err := eventProcessor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event processor: %w", err)
	}
	defer eventProcessor.Stop()

	mediaProcessor := service.NewMediaProcessor(db, provider, objects, auditSink, cfg.Worker, logger)
	if err := mediaProcessor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start media processor: %w", err)
	}
	defer mediaProcessor.Stop()

	server := NewServer(cfg, db, sender, auditSink, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"wpconn/internal/constants"
	"wpconn/internal/models"

	"github.com/joho/godotenv"
)

var (
	ErrMissingAppSecret   = models.ConfigError{Message: "missing APP_SECRET"}
	ErrMissingVerifyToken = models.ConfigError{Message: "missing WEBHOOK_VERIFY_TOKEN"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing DATABASE_PATH"}
)

// Load reads configuration from the environment, with an optional .env file
// merged in first (real environment wins). envFile may be empty.
func Load(envFile string) (*models.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		// Best effort: a .env next to the binary is a dev convenience.
		_ = godotenv.Load()
	}

	cfg := &models.Config{
		Server: models.ServerConfig{
			Port:            getEnv("PORT", constants.DefaultServerPort),
			ReadTimeout:     secondsEnv("SERVER_READ_TIMEOUT_SEC", constants.DefaultReadTimeoutSec),
			WriteTimeout:    secondsEnv("SERVER_WRITE_TIMEOUT_SEC", constants.DefaultWriteTimeoutSec),
			IdleTimeout:     secondsEnv("SERVER_IDLE_TIMEOUT_SEC", constants.DefaultIdleTimeoutSec),
			ShutdownTimeout: secondsEnv("SERVER_SHUTDOWN_TIMEOUT_SEC", constants.DefaultShutdownTimeoutSec),
		},
		Database: models.DatabaseConfig{
			Path: os.Getenv("DATABASE_PATH"),
		},
		Security: models.SecurityConfig{
			AppSecret:   os.Getenv("APP_SECRET"),
			VerifyToken: os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		},
		Meta: models.MetaConfig{
			BaseURL: getEnv("GRAPH_API_BASE_URL", constants.DefaultGraphAPIBaseURL),
			Timeout: secondsEnv("GRAPH_API_TIMEOUT_SEC", constants.DefaultGraphAPITimeoutSec),
		},
		Worker: models.WorkerConfig{
			BatchSize:      intEnv("WORKER_BATCH_SIZE", constants.DefaultEventBatchSize),
			MediaBatchSize: intEnv("MEDIA_BATCH_SIZE", constants.DefaultMediaBatchSize),
			MaxRetries:     intEnv("WORKER_MAX_RETRIES", constants.DefaultMaxRetries),
			PollInterval:   secondsEnv("WORKER_POLL_INTERVAL_SEC", constants.DefaultPollIntervalSec),
			ErrorInterval:  secondsEnv("WORKER_ERROR_BACKOFF_SEC", constants.DefaultErrorBackoffSec),
			ClaimTTL:       secondsEnv("WORKER_CLAIM_TTL_SEC", constants.DefaultClaimTTLSec),
		},
		Media: models.MediaConfig{
			StorageDir: os.Getenv("MEDIA_STORAGE_DIR"),
			Bucket:     getEnv("MEDIA_BUCKET", constants.DefaultMediaBucket),
		},
		Redis:    loadRedisConfig(),
		Tracing:  loadTracingConfig(),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadRedisConfig() models.RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return models.RedisConfig{Enabled: false}
	}

	return models.RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intEnv("REDIS_DB", 0),
		TTL:      secondsEnv("REDIS_TTL_SEC", constants.DefaultRedisTTLSec),
	}
}

func loadTracingConfig() models.TracingConfig {
	return models.TracingConfig{
		Enabled:      boolEnv("TRACING_ENABLED", false),
		ServiceName:  getEnv("TRACING_SERVICE_NAME", "wpconn"),
		OTLPEndpoint: os.Getenv("TRACING_OTLP_ENDPOINT"),
		UseStdout:    boolEnv("TRACING_USE_STDOUT", false),
		SampleRate:   floatEnv("TRACING_SAMPLE_RATE", 1.0),
	}
}

func validate(c *models.Config) error {
	if c.Security.AppSecret == "" {
		return ErrMissingAppSecret
	}
	if c.Security.VerifyToken == "" {
		return ErrMissingVerifyToken
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Worker.BatchSize <= 0 {
		return models.ConfigError{Message: "WORKER_BATCH_SIZE must be > 0"}
	}
	if c.Worker.MediaBatchSize <= 0 {
		return models.ConfigError{Message: "MEDIA_BATCH_SIZE must be > 0"}
	}
	if c.Worker.MaxRetries <= 0 {
		return models.ConfigError{Message: "WORKER_MAX_RETRIES must be > 0"}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func boolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func floatEnv(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func secondsEnv(key string, fallbackSec int) time.Duration {
	return time.Duration(intEnv(key, fallbackSec)) * time.Second
}

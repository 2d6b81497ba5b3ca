package models

import (
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Meta     MetaConfig
	Worker   WorkerConfig
	Media    MediaConfig
	Redis    RedisConfig
	Tracing  TracingConfig
	LogLevel string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Path string
}

type SecurityConfig struct {
	// AppSecret signs inbound webhook payloads (X-Hub-Signature-256) and
	// doubles as the master API key for admin access.
	AppSecret string
	// VerifyToken answers the provider's GET subscription handshake.
	VerifyToken string
}

type MetaConfig struct {
	BaseURL string
	Timeout time.Duration
}

type WorkerConfig struct {
	BatchSize      int
	MediaBatchSize int
	MaxRetries     int
	PollInterval   time.Duration
	ErrorInterval  time.Duration
	ClaimTTL       time.Duration
}

type MediaConfig struct {
	// StorageDir is the root of the local object store. Empty disables the
	// durable copy: the media processor then records the provider's
	// short-lived URL directly.
	StorageDir string
	Bucket     string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	UseStdout    bool
	SampleRate   float64
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

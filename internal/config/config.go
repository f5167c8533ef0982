package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Recording name sources
const (
	NameSourceCallSid   = "call_sid"
	NameSourceStreamSid = "stream_sid"
	NameSourceTimestamp = "timestamp"
)

// Config holds all configuration for the media stream recorder
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Public base URL for this service (e.g. https://xxx.ngrok-free.dev when behind ngrok).
	// Used for logging the WebSocket endpoint; Twilio connects to wss://<this-host>/streams/twilio.
	// Optional; if unset, logs ws://localhost:PORT/streams/twilio.
	PublicURL string `envconfig:"PUBLIC_URL" default:""`

	// Recording configuration
	RecordingsDir        string `envconfig:"RECORDINGS_DIR" default:""`                // Empty means the working directory
	RecordingNameSource  string `envconfig:"RECORDING_NAME_SOURCE" default:"call_sid"` // call_sid, stream_sid, timestamp
	FinalizeOnDisconnect bool   `envconfig:"FINALIZE_ON_DISCONNECT" default:"true"`    // Finalize when the socket drops before "stop"

	// Finalize retry configuration: attempts for a failed Stop, initial backoff in milliseconds
	FinalizeRetryMaxAttempts int `envconfig:"FINALIZE_RETRY_MAX_ATTEMPTS" default:"3"`
	FinalizeRetryBackoff     int `envconfig:"FINALIZE_RETRY_BACKOFF" default:"100"`

	// Storage circuit breaker: consecutive failed finalizes before new recordings are
	// refused, and the cool-down in milliseconds before one is let through again.
	// A max of 0 disables the breaker.
	StorageBreakerMaxFailures  int `envconfig:"STORAGE_BREAKER_MAX_FAILURES" default:"5"`
	StorageBreakerResetTimeout int `envconfig:"STORAGE_BREAKER_RESET_TIMEOUT" default:"30000"`

	// WebSocket configuration
	WSReadBufferSize int `envconfig:"WS_READ_BUFFER_SIZE" default:"4096"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	dir, err := ResolveRecordingsDir(cfg.RecordingsDir)
	if err != nil {
		return nil, err
	}
	cfg.RecordingsDir = dir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field values envconfig cannot
func (c *Config) Validate() error {
	switch c.RecordingNameSource {
	case NameSourceCallSid, NameSourceStreamSid, NameSourceTimestamp:
	default:
		return fmt.Errorf("RECORDING_NAME_SOURCE must be one of %s, %s, %s (got %q)",
			NameSourceCallSid, NameSourceStreamSid, NameSourceTimestamp, c.RecordingNameSource)
	}

	if c.FinalizeRetryMaxAttempts < 1 {
		return fmt.Errorf("FINALIZE_RETRY_MAX_ATTEMPTS must be at least 1 (got %d)", c.FinalizeRetryMaxAttempts)
	}
	if c.FinalizeRetryBackoff < 0 {
		return fmt.Errorf("FINALIZE_RETRY_BACKOFF must not be negative (got %d)", c.FinalizeRetryBackoff)
	}

	if c.StorageBreakerMaxFailures < 0 {
		return fmt.Errorf("STORAGE_BREAKER_MAX_FAILURES must not be negative (got %d)", c.StorageBreakerMaxFailures)
	}
	if c.StorageBreakerResetTimeout < 0 {
		return fmt.Errorf("STORAGE_BREAKER_RESET_TIMEOUT must not be negative (got %d)", c.StorageBreakerResetTimeout)
	}

	if info, err := os.Stat(c.RecordingsDir); err == nil && !info.IsDir() {
		return fmt.Errorf("RECORDINGS_DIR %s is not a directory", c.RecordingsDir)
	}

	return nil
}

// FinalizeBackoff returns the finalize retry backoff as a duration
func (c *Config) FinalizeBackoff() time.Duration {
	return time.Duration(c.FinalizeRetryBackoff) * time.Millisecond
}

// StorageBreakerTimeout returns the storage breaker cool-down as a duration
func (c *Config) StorageBreakerTimeout() time.Duration {
	return time.Duration(c.StorageBreakerResetTimeout) * time.Millisecond
}

// ResolveRecordingsDir turns the configured directory into an absolute path,
// defaulting to the current working directory
func ResolveRecordingsDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		return wd, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve RECORDINGS_DIR %s: %w", dir, err)
	}
	return abs, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

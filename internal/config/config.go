package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/Pinash124/bike-hub-sub000/pkg/config"
)

// Store backends for the persistent session store.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds all configuration for the storefront.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8090"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Marketplace API
	APIBaseURL            string        `env:"API_BASE_URL" envDefault:"http://localhost:8080/api"`
	APITimeout            time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
	APISuccessCode        int           `env:"API_SUCCESS_CODE" envDefault:"1000"`
	APICheckSuccessCode   bool          `env:"API_CHECK_SUCCESS_CODE" envDefault:"true"`
	CircuitBreakerEnabled bool          `env:"CIRCUIT_BREAKER_ENABLED" envDefault:"true"`

	// Session store
	StoreBackend   string `env:"STORE_BACKEND" envDefault:"file"`
	StoreFilePath  string `env:"STORE_FILE_PATH" envDefault:"data/session.json"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass      string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"storefront:"`

	// Kafka; empty disables activity events.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Session behaviour
	OTPResendInterval time.Duration `env:"OTP_RESEND_INTERVAL" envDefault:"60s"`
	TokenRefreshSkew  time.Duration `env:"TOKEN_REFRESH_SKEW" envDefault:"30s"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EventsEnabled reports whether activity events go to Kafka.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %s", c.APITimeout)
	}
	switch c.StoreBackend {
	case StoreMemory, StoreRedis:
	case StoreFile:
		if c.StoreFilePath == "" {
			return fmt.Errorf("STORE_FILE_PATH is required for the file store")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, file, redis, got %q", c.StoreBackend)
	}
	if c.OTPResendInterval < 0 {
		return fmt.Errorf("OTP_RESEND_INTERVAL must not be negative")
	}
	if c.TokenRefreshSkew < 0 {
		return fmt.Errorf("TOKEN_REFRESH_SKEW must not be negative")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	return nil
}

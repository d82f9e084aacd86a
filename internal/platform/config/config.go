// Package config loads service configuration from MOUNTPASS_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "MOUNTPASS_"

// Config is the complete service configuration.
type Config struct {
	Server     Server
	Database   DatabaseConfig  `envPrefix:"DATABASE_"`
	Redis      RedisConfig     `envPrefix:"REDIS_"`
	Media      MediaConfig     `envPrefix:"MEDIA_"`
	RateLimit  RateLimitConfig `envPrefix:"RATELIMIT_"`
	Moderation ModerationConfig
	Events     EventsConfig
	Telemetry  TelemetryConfig
}

// Server captures HTTP server level configuration. TrustProxy takes the
// client address from True-Client-IP, X-Real-IP or X-Forwarded-For; enable
// it only behind a proxy that sets them.
type Server struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"  envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	TrustProxy      bool          `env:"TRUST_PROXY"`
}

// DatabaseConfig selects Postgres. An empty URL runs on in-memory stores.
type DatabaseConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE"      envDefault:"true"`
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT"  envDefault:"3s"`
}

type MediaConfig struct {
	Root          string `env:"ROOT"            envDefault:"media"`
	URLPrefix     string `env:"URL_PREFIX"      envDefault:"/media"`
	MaxImageBytes int64  `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`
}

// RateLimitConfig bounds submissions per client IP.
type RateLimitConfig struct {
	Disabled    bool          `env:"DISABLED"`
	Submissions int           `env:"SUBMISSIONS" envDefault:"20"`
	Window      time.Duration `env:"WINDOW"      envDefault:"1h"`
}

type ModerationConfig struct {
	// TokenHash is the bcrypt hash of the moderator token. Empty leaves the
	// status endpoint open.
	TokenHash        string `env:"MODERATOR_TOKEN_HASH"`
	RefreshSubmitter bool   `env:"SUBMITTER_REFRESH"`
}

// EventsConfig controls the outbox and its Kafka relay.
type EventsConfig struct {
	Enabled          bool          `env:"EVENTS_ENABLED"`
	KafkaBrokers     []string      `env:"KAFKA_BROKERS"        envSeparator:","`
	KafkaTopic       string        `env:"KAFKA_TOPIC"          envDefault:"pass-events"`
	TopicPartitions  int32         `env:"KAFKA_PARTITIONS"     envDefault:"3"`
	TopicReplication int16         `env:"KAFKA_REPLICATION"    envDefault:"1"`
	PollInterval     time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"5s"`
	BatchSize        int           `env:"OUTBOX_BATCH_SIZE"    envDefault:"100"`
}

// TelemetryConfig enables tracing when OTLPEndpoint is set. SampleRatio is
// the share of new traces kept, in [0,1].
type TelemetryConfig struct {
	OTLPEndpoint string  `env:"OTLP_ENDPOINT"`
	ServiceName  string  `env:"SERVICE_NAME" envDefault:"mountpass"`
	SampleRatio  float64 `env:"TRACE_SAMPLE_RATIO" envDefault:"1"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Media.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("max image bytes must be positive"))
	}
	if !c.RateLimit.Disabled && (c.RateLimit.Submissions <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate limit needs positive submissions and window"))
	}
	if c.Events.Enabled && len(c.Events.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("events enabled without kafka brokers"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("trace sample ratio must be within [0,1]"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

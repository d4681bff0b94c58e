// Package config provides application configuration.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone data for minimal container images

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port   string `env:"PORT"    envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"./data/providata.db"`

	// SessionTimeout is the idle time after which a conversation starts over.
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"30m"`
	// ProcessTimeout bounds the handling of one inbound webhook event.
	ProcessTimeout time.Duration `env:"PROCESS_TIMEOUT" envDefault:"30s"`
	TimeZone       string        `env:"TIMEZONE"        envDefault:"America/Porto_Velho"`
	// ExpiryNotice tells the citizen their idle session was discarded.
	ExpiryNotice   bool          `env:"SESSION_EXPIRY_NOTICE" envDefault:"false"`
	// SeedPath optionally names a JSON file of offices and categories loaded at startup.
	SeedPath       string        `env:"SEED_PATH"`

	Evolution EvolutionConfig
	Webhook   WebhookConfig
	Retry     RetryConfig
	Telemetry TelemetryConfig
}

// EvolutionConfig points at the Evolution API instance used for outbound messages.
type EvolutionConfig struct {
	BaseURL      string        `env:"EVOLUTION_API_URL"       envDefault:"http://localhost:8081"`
	APIKey       string        `env:"EVOLUTION_API_KEY"`
	InstanceName string        `env:"EVOLUTION_INSTANCE_NAME" envDefault:"DATA-RO"`
	SendDelay    time.Duration `env:"EVOLUTION_SEND_DELAY"    envDefault:"1200ms"`
	Timeout      time.Duration `env:"EVOLUTION_TIMEOUT"       envDefault:"15s"`
}

// WebhookConfig controls inbound event handling.
type WebhookConfig struct {
	// Token, when set, must be presented by the gateway as the apikey header or token query parameter.
	Token          string        `env:"WEBHOOK_TOKEN"`
	DedupRetention time.Duration `env:"DEDUP_RETENTION" envDefault:"24h"`
	PruneInterval  time.Duration `env:"PRUNE_INTERVAL"  envDefault:"1h"`
}

// RetryConfig controls retries of SQLite writes under lock contention.
type RetryConfig struct {
	DatabaseMaxRetries     int           `env:"DB_MAX_RETRIES"      envDefault:"3"`
	DatabaseRetryBaseDelay time.Duration `env:"DB_RETRY_BASE_DELAY" envDefault:"50ms"`
}

// TelemetryConfig controls trace export. Tracing is disabled when OTLPEndpoint is empty.
type TelemetryConfig struct {
	ServiceName  string `env:"OTEL_SERVICE_NAME"           envDefault:"providata-intake"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be > 0")
	}
	if c.ProcessTimeout <= 0 {
		return fmt.Errorf("PROCESS_TIMEOUT must be > 0")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.TimeZone, err)
	}
	if strings.TrimSpace(c.Evolution.BaseURL) == "" {
		return fmt.Errorf("EVOLUTION_API_URL cannot be empty")
	}
	if c.Evolution.InstanceName == "" {
		return fmt.Errorf("EVOLUTION_INSTANCE_NAME cannot be empty")
	}
	if c.Webhook.DedupRetention <= 0 {
		return fmt.Errorf("DEDUP_RETENTION must be > 0")
	}
	if c.Webhook.PruneInterval <= 0 {
		return fmt.Errorf("PRUNE_INTERVAL must be > 0")
	}
	if c.Retry.DatabaseMaxRetries <= 0 {
		return fmt.Errorf("DB_MAX_RETRIES must be > 0")
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

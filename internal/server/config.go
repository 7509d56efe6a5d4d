package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/partyrelay/internal/relay"
	"github.com/Tyrowin/partyrelay/internal/telemetry"
)

// Defaults applied when a setting is missing or not positive.
const (
	DefaultPort                  = "10000"
	DefaultMaxMessageSize        = 4096
	DefaultRateLimitBurst        = 120
	DefaultRefillInterval        = time.Second
	DefaultCooldownSweepInterval = 60 * time.Second
	DefaultShutdownTimeout       = 10 * time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST" envDefault:"120"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

// Config holds the server configuration settings including security controls
// and the relay's tunables.
type Config struct {
	Port           string   `env:"PORT" envDefault:"10000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	MaxMessageSize int64    `env:"MAX_MESSAGE_SIZE" envDefault:"4096"`
	RateLimit      RateLimitConfig

	MaxPartySize          int           `env:"MAX_PARTY_SIZE" envDefault:"10"`
	InviteCooldown        time.Duration `env:"INVITE_COOLDOWN" envDefault:"15s"`
	ChatHistoryLimit      int           `env:"CHAT_HISTORY_LIMIT" envDefault:"50"`
	CooldownSweepInterval time.Duration `env:"COOLDOWN_SWEEP_INTERVAL" envDefault:"60s"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := Config{
		Port:           DefaultPort,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: DefaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          DefaultRateLimitBurst,
			RefillInterval: DefaultRefillInterval,
		},
		MaxPartySize:          relay.DefaultMaxPartySize,
		InviteCooldown:        relay.DefaultInviteCooldown,
		ChatHistoryLimit:      relay.DefaultHistoryLimit,
		CooldownSweepInterval: DefaultCooldownSweepInterval,
		ShutdownTimeout:       DefaultShutdownTimeout,
		LogLevel:              "info",
		LogFormat:             "json",
		OTelEnabled:           true,
	}
	return &cfg
}

// NewConfigFromEnv applies the given dotenv files (".env" when none are named)
// and then reads the environment. Missing dotenv files are skipped. Values
// that parse but are out of range fall back to defaults.
func NewConfigFromEnv(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	sanitized := sanitizeConfig(cfg)
	return &sanitized, nil
}

func sanitizeConfig(cfg Config) Config {
	cfg.Port = strings.TrimPrefix(strings.TrimSpace(cfg.Port), ":")
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = DefaultRateLimitBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = DefaultRefillInterval
	}

	if cfg.MaxPartySize <= 0 {
		cfg.MaxPartySize = relay.DefaultMaxPartySize
	}

	if cfg.InviteCooldown <= 0 {
		cfg.InviteCooldown = relay.DefaultInviteCooldown
	}

	if cfg.ChatHistoryLimit <= 0 {
		cfg.ChatHistoryLimit = relay.DefaultHistoryLimit
	}

	if cfg.CooldownSweepInterval <= 0 {
		cfg.CooldownSweepInterval = DefaultCooldownSweepInterval
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// RelayOptions maps the relay tunables onto relay.Options.
func (c Config) RelayOptions(sanitizer relay.Sanitizer) relay.Options {
	return relay.Options{
		MaxPartySize:   c.MaxPartySize,
		InviteCooldown: c.InviteCooldown,
		HistoryLimit:   c.ChatHistoryLimit,
		Sanitizer:      sanitizer,
	}
}

// Telemetry returns the tracing settings.
func (c Config) Telemetry() telemetry.Config {
	return telemetry.Config{
		Enabled:  c.OTelEnabled,
		Endpoint: c.OTelEndpoint,
	}
}

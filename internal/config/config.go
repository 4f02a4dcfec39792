package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tes-agency/portal/internal/validation"
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Auth        AuthConfig      `yaml:"auth"`
	AccessKeys  AccessKeyConfig `yaml:"access_keys"`
	Bootstrap   BootstrapConfig `yaml:"bootstrap"`
	Notify      NotifyConfig    `yaml:"notify"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Logging     LoggingConfig   `yaml:"logging"`
	Tracing     TracingConfig   `yaml:"tracing"`
	Environment string          `yaml:"environment" env:"ENVIRONMENT"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig selects the storage backend. An empty URL keeps everything
// in memory.
type DatabaseConfig struct {
	URL            string `yaml:"url" env:"DATABASE_URL"`
	MaxConnections int    `yaml:"max_connections" env:"DATABASE_MAX_CONNECTIONS"`
	AutoMigrate    bool   `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE"`
}

type AuthConfig struct {
	SessionSecret     string        `yaml:"session_secret" env:"SESSION_SECRET"`
	SessionTTL        time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	TrustUserIDHeader bool          `yaml:"trust_user_id_header" env:"AUTH_TRUST_USER_ID_HEADER"`
	BcryptCost        int           `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST"`
}

type AccessKeyConfig struct {
	Prefix      string `yaml:"prefix" env:"ACCESS_KEY_PREFIX"`
	MaxAttempts int    `yaml:"max_attempts" env:"ACCESS_KEY_MAX_ATTEMPTS"`
}

// BootstrapConfig seeds the first directors_office key into an empty
// registry. AdminKey fixes the token; when empty one is generated.
type BootstrapConfig struct {
	Enabled       bool   `yaml:"enabled" env:"BOOTSTRAP_ENABLED"`
	AdminUsername string `yaml:"admin_username" env:"BOOTSTRAP_ADMIN_USERNAME"`
	AdminKey      string `yaml:"admin_key" env:"BOOTSTRAP_ADMIN_KEY"`
}

type NotifyConfig struct {
	DiscordWebhookURL string        `yaml:"discord_webhook_url" env:"DISCORD_WEBHOOK_URL"`
	QueueSize         int           `yaml:"queue_size" env:"NOTIFY_QUEUE_SIZE"`
	Timeout           time.Duration `yaml:"timeout" env:"NOTIFY_TIMEOUT"`
	RatePerSecond     float64       `yaml:"rate_per_second" env:"NOTIFY_RATE_PER_SECOND"`
}

type RateLimitConfig struct {
	PublicPerMinute   int      `yaml:"public_per_minute" env:"RATE_LIMIT_PUBLIC"`
	AuthPerMinute     int      `yaml:"auth_per_minute" env:"RATE_LIMIT_AUTH"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs" env:"TRUSTED_PROXY_CIDRS" envSeparator:","`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" env:"TRACING_ENABLED"`
	Exporter     string  `yaml:"exporter" env:"TRACING_EXPORTER"`
	ServiceName  string  `yaml:"service_name" env:"TRACING_SERVICE_NAME"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"TRACING_OTLP_ENDPOINT"`
	SampleRate   float64 `yaml:"sample_rate" env:"TRACING_SAMPLE_RATE"`
}

var keyPrefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
			AutoMigrate:    true,
		},
		Auth: AuthConfig{
			SessionTTL:        24 * time.Hour,
			TrustUserIDHeader: true,
			BcryptCost:        12,
		},
		AccessKeys: AccessKeyConfig{
			Prefix:      "TES",
			MaxAttempts: 10,
		},
		Bootstrap: BootstrapConfig{
			Enabled:       true,
			AdminUsername: "Admin",
		},
		Notify: NotifyConfig{
			QueueSize:     64,
			Timeout:       5 * time.Second,
			RatePerSecond: 2,
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: 120,
			AuthPerMinute:   10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "tes-portal",
			SampleRate:  1.0,
		},
		Environment: "development",
	}
}

// Load layers defaults, the optional YAML file at path, then environment
// variables, and validates the result. CLI flags are applied by the caller,
// which must call Validate again.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.MaxConnections < 0 {
		return fmt.Errorf("DATABASE_MAX_CONNECTIONS must not be negative")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.IsProduction() && c.Auth.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required in production")
	}
	if !keyPrefixPattern.MatchString(c.AccessKeys.Prefix) {
		return fmt.Errorf("ACCESS_KEY_PREFIX must be 1-12 uppercase letters or digits, got %q", c.AccessKeys.Prefix)
	}
	if c.AccessKeys.MaxAttempts < 1 {
		return fmt.Errorf("ACCESS_KEY_MAX_ATTEMPTS must be at least 1")
	}
	if c.Bootstrap.Enabled && strings.TrimSpace(c.Bootstrap.AdminUsername) == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_USERNAME is required when bootstrap is enabled")
	}
	if err := validation.ValidateWebhookURL(c.Notify.DiscordWebhookURL, "DISCORD_WEBHOOK_URL", c.IsProduction()); err != nil {
		return err
	}
	if c.Notify.QueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be at least 1")
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	if c.Notify.RatePerSecond <= 0 {
		return fmt.Errorf("NOTIFY_RATE_PER_SECOND must be positive")
	}
	if c.RateLimit.PublicPerMinute < 0 || c.RateLimit.AuthPerMinute < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	for _, cidr := range c.RateLimit.TrustedProxyCIDRs {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			return fmt.Errorf("TRUSTED_PROXY_CIDRS: invalid CIDR %q", cidr)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp", "none":
		default:
			return fmt.Errorf("TRACING_EXPORTER must be stdout, otlp or none, got %q", c.Tracing.Exporter)
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1")
		}
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// EnsureSessionSecret fills an empty session secret with random bytes.
// Sessions signed with a generated secret do not survive a restart. It
// reports whether a secret was generated.
func (c *Config) EnsureSessionSecret() (bool, error) {
	if c.Auth.SessionSecret != "" {
		return false, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return false, fmt.Errorf("generate session secret: %w", err)
	}
	c.Auth.SessionSecret = hex.EncodeToString(buf)
	return true, nil
}

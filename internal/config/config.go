package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/pkg/messaging/redis"
	"github.com/jwalitptl/onboarding-api/pkg/worker"
)

// EnvPrefix prefixes every environment override, e.g. ONBOARDING_DATABASE_HOST.
const EnvPrefix = "ONBOARDING"

// PathEnv names the config file when Load is given no path.
const PathEnv = EnvPrefix + "_CONFIG"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" envconfig:"RATE_LIMIT"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Authz      AuthzConfig      `mapstructure:"authz"`
	Onboarding OnboardingConfig `mapstructure:"onboarding"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	CORSOrigins     []string      `mapstructure:"cors_origins" envconfig:"CORS_ORIGINS"`
	Mode            string        `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `mapstructure:"auto_migrate" envconfig:"AUTO_MIGRATE"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours" envconfig:"EXPIRY_HOURS"`
}

func (c JWTConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"MIN_IDLE_CONNS"`
}

// ToBrokerConfig converts to the broker's connection settings.
func (c RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int     `mapstructure:"burst"`
}

type OutboxConfig struct {
	// Embedded runs the outbox processor inside the API process.
	Embedded      bool          `mapstructure:"embedded"`
	BatchSize     int           `mapstructure:"batch_size" envconfig:"BATCH_SIZE"`
	PollInterval  time.Duration `mapstructure:"poll_interval" envconfig:"POLL_INTERVAL"`
	RetryAttempts int           `mapstructure:"retry_attempts" envconfig:"RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" envconfig:"RETRY_DELAY"`
	MaxRetries    int           `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
	Lease         time.Duration `mapstructure:"lease"`
	Retention     time.Duration `mapstructure:"retention"`
	// PayloadKey is a base64 AES key (16, 24 or 32 bytes) sealing secrets in queued
	// notifications. Empty stores them as is.
	PayloadKey string `mapstructure:"payload_key" envconfig:"PAYLOAD_KEY"`
}

func (c OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		MaxRetries:    c.MaxRetries,
		Lease:         c.Lease,
		Retention:     c.Retention,
	}
}

type AuthzConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" envconfig:"CACHE_TTL"`
}

type OnboardingConfig struct {
	ContactFallback string `mapstructure:"contact_fallback" envconfig:"CONTACT_FALLBACK"`
}

// Fallback returns the parsed contact fallback policy.
func (c OnboardingConfig) Fallback() model.FallbackPolicy {
	p, _ := model.ParseFallbackPolicy(c.ContactFallback)
	return p
}

type AuditConfig struct {
	RetentionDays   int           `mapstructure:"retention_days" envconfig:"RETENTION_DAYS"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "onboarding")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("redis.channel", "notifications")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "no-reply@onboarding.local")

	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("outbox.embedded", true)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", "200ms")
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.lease", "1m")
	v.SetDefault("outbox.retention", "168h")

	v.SetDefault("authz.cache_ttl", "1m")
	v.SetDefault("onboarding.contact_fallback", string(model.FallbackAdmin))

	v.SetDefault("audit.retention_days", 365)
	v.SetDefault("audit.cleanup_interval", "24h")

	v.SetDefault("log.level", "info")
}

// Load reads path, or the file named by ONBOARDING_CONFIG, or config.yml from the usual
// locations, then applies ONBOARDING_* environment overrides. A missing config.yml is
// not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		if err := v.BindEnv("config_file", PathEnv); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", PathEnv, err)
		}
		path = v.GetString("config_file")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt.secret is required")
	}
	if _, ok := model.ParseFallbackPolicy(c.Onboarding.ContactFallback); !ok {
		return fmt.Errorf("onboarding.contact_fallback must be %q or %q, got %q",
			model.FallbackAdmin, model.FallbackSelf, c.Onboarding.ContactFallback)
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 || c.Outbox.RetryAttempts <= 0 ||
		c.Outbox.RetryDelay <= 0 || c.Outbox.MaxRetries <= 0 {
		return errors.New("outbox batch_size, poll_interval, retry_attempts, retry_delay and max_retries must be positive")
	}
	if c.Outbox.PayloadKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.Outbox.PayloadKey)
		if err != nil {
			return fmt.Errorf("outbox.payload_key is not valid base64: %w", err)
		}
		switch len(key) {
		case 16, 24, 32:
		default:
			return fmt.Errorf("outbox.payload_key must decode to 16, 24 or 32 bytes, got %d", len(key))
		}
	}
	return nil
}

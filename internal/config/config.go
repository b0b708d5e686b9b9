package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers accepted by store.driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
	DriverRedis    = "redis"
)

// Config contains runtime configuration required by the service.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Events    EventsConfig    `mapstructure:"events"`
	Store     StoreConfig     `mapstructure:"store"`
}

// AppConfig names the service in health responses and logs.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	APIPrefix    string        `mapstructure:"api_prefix"`
}

// LogConfig selects the slog level and output format (json or text).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig lists accepted API keys. An empty list disables authentication.
type AuthConfig struct {
	Header  string   `mapstructure:"header"`
	APIKeys []string `mapstructure:"api_keys"`
}

// RateLimitConfig bounds requests per client. Zero disables limiting.
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
}

// EventsConfig holds ingestion and inbox limits.
type EventsConfig struct {
	MaxPayloadSizeKB  int `mapstructure:"max_payload_size_kb"`
	DefaultInboxLimit int `mapstructure:"default_inbox_limit"`
	MaxInboxLimit     int `mapstructure:"max_inbox_limit"`
	StatsCap          int `mapstructure:"stats_cap"`
	// DevFallbacks lets list/create degrade instead of failing when storage is unavailable.
	DevFallbacks bool `mapstructure:"dev_fallbacks"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	Driver       string         `mapstructure:"driver"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	EnsureSchema bool           `mapstructure:"ensure_schema"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
	DynamoDB     DynamoDBConfig `mapstructure:"dynamodb"`
	Redis        RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig holds the postgres connection string.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// DynamoDBConfig names the table, its status GSI and the AWS endpoint.
type DynamoDBConfig struct {
	Table    string `mapstructure:"table"`
	Index    string `mapstructure:"index"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// RedisConfig holds the redis URL and the key namespace.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Load reads configuration from defaults, an optional file, .env and INBOX_* environment variables.
// Environment keys use underscores for nesting: INBOX_STORE_DRIVER, INBOX_EVENTS_MAX_INBOX_LIMIT.
func Load(configPath string) (*Config, error) {
	// Local dev convenience; a missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("INBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// API keys arrive as "k1,k2" from the environment.
	cfg.Auth.APIKeys = splitList(cfg.Auth.APIKeys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Event Inbox API")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.api_prefix", "/v1")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.header", "X-API-Key")
	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("rate_limit.per_minute", 100)

	v.SetDefault("events.max_payload_size_kb", 256)
	v.SetDefault("events.default_inbox_limit", 50)
	v.SetDefault("events.max_inbox_limit", 100)
	v.SetDefault("events.stats_cap", 1000)
	v.SetDefault("events.dev_fallbacks", true)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("store.ensure_schema", false)
	v.SetDefault("store.postgres.url", "")
	v.SetDefault("store.dynamodb.table", "event-inbox-events")
	v.SetDefault("store.dynamodb.index", "status-created_at-index")
	v.SetDefault("store.dynamodb.region", "us-east-1")
	v.SetDefault("store.dynamodb.endpoint", "")
	v.SetDefault("store.redis.url", "redis://localhost:6379/0")
	v.SetDefault("store.redis.key_prefix", "inbox")
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Events.MaxPayloadSizeKB <= 0 {
		errs = append(errs, errors.New("events.max_payload_size_kb must be positive"))
	}
	if c.Events.MaxInboxLimit <= 0 {
		errs = append(errs, errors.New("events.max_inbox_limit must be positive"))
	}
	if c.Events.DefaultInboxLimit <= 0 || c.Events.DefaultInboxLimit > c.Events.MaxInboxLimit {
		errs = append(errs, errors.New("events.default_inbox_limit must be in [1, max_inbox_limit]"))
	}
	if c.Events.StatsCap <= 0 {
		errs = append(errs, errors.New("events.stats_cap must be positive"))
	}
	if c.RateLimit.PerMinute < 0 {
		errs = append(errs, errors.New("rate_limit.per_minute must not be negative"))
	}

	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.Store.Postgres.URL == "" {
			errs = append(errs, errors.New("store.postgres.url required for postgres driver"))
		}
	case DriverDynamoDB:
		if c.Store.DynamoDB.Table == "" || c.Store.DynamoDB.Index == "" {
			errs = append(errs, errors.New("store.dynamodb.table and store.dynamodb.index required for dynamodb driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func splitList(in []string) []string {
	out := []string{}
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Sync     SyncConfig
	Prokip   ProkipConfig
}

// AppConfig holds API server and environment settings.
type AppConfig struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	APIHost  string `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort  string `envconfig:"API_PORT" default:"8080"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL" default:"sqlite://prokipsync.db"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
}

type RedisConfig struct {
	URL     string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	LockKey string        `envconfig:"SYNC_LOCK_KEY" default:"prokipsync:scheduler:lock"`
	LockTTL time.Duration `envconfig:"SYNC_LOCK_TTL" default:"10m"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"store-events"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"prokipsync-worker"`
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"true"`
}

// SyncConfig controls the reconciliation runs.
type SyncConfig struct {
	Interval       time.Duration `envconfig:"SYNC_INTERVAL" default:"15m"`
	Lookback       time.Duration `envconfig:"SYNC_LOOKBACK" default:"24h"`
	SchedulerOn    bool          `envconfig:"SYNC_SCHEDULER_ENABLED" default:"true"`
	RequestTimeout time.Duration `envconfig:"SYNC_REQUEST_TIMEOUT" default:"30s"`
}

type ProkipConfig struct {
	BaseURL        string `envconfig:"PROKIP_BASE_URL" default:"https://api.prokip.africa"`
	PaymentMethod  string `envconfig:"PROKIP_PAYMENT_METHOD" default:"cash"`
	WalkInCustomer int    `envconfig:"PROKIP_WALK_IN_CONTACT_ID" default:"1"`
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}
	if c.Sync.Lookback <= 0 {
		return fmt.Errorf("SYNC_LOOKBACK must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`

	RedisAddr        string `env:"REDIS_ADDR"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	RedisDB          int    `env:"REDIS_DB" envDefault:"0"`
	CatalogCacheTTLS int    `env:"CATALOG_CACHE_TTL_S" envDefault:"60"`

	KafkaBrokers         []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic           string   `env:"KAFKA_TOPIC" envDefault:"canteen.orders"`
	OutboxPollIntervalMs int      `env:"OUTBOX_POLL_INTERVAL_MS" envDefault:"1000"`
	OutboxBatchSize      int      `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`

	IdempotencyTTLH           int `env:"IDEMPOTENCY_TTL_H" envDefault:"24"`
	IdempotencyPurgeIntervalM int `env:"IDEMPOTENCY_PURGE_INTERVAL_M" envDefault:"15"`
	TxMaxAttempts             int `env:"TX_MAX_ATTEMPTS" envDefault:"3"`
	TxBackoffBaseMs           int `env:"TX_BACKOFF_BASE_MS" envDefault:"20"`
	MaxBatchOrders            int `env:"MAX_BATCH_ORDERS" envDefault:"20"`
	MaxItemQuantity           int `env:"MAX_ITEM_QUANTITY" envDefault:"20"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.TxMaxAttempts < 1 {
		return nil, fmt.Errorf("config.Load: TX_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.MaxBatchOrders < 1 {
		return nil, fmt.Errorf("config.Load: MAX_BATCH_ORDERS must be at least 1")
	}
	return &cfg, nil
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLH) * time.Hour
}

func (c *Config) IdempotencyPurgeInterval() time.Duration {
	return time.Duration(c.IdempotencyPurgeIntervalM) * time.Minute
}

func (c *Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.CatalogCacheTTLS) * time.Second
}

func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalMs) * time.Millisecond
}

func (c *Config) TxBackoffBase() time.Duration {
	return time.Duration(c.TxBackoffBaseMs) * time.Millisecond
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaBrokers[0]) != ""
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"storefront"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	StorageBackend string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	RedisSlotTTL   time.Duration `env:"REDIS_SLOT_TTL" envDefault:"720h"`
	MongoURI       string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDBName    string        `env:"MONGO_DB_NAME" envDefault:"storefront"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"./carts.db"`

	CatalogBaseURL string        `env:"CATALOG_BASE_URL" envDefault:"http://localhost:3000/api"`
	CatalogTimeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`

	WhatsAppPhone  string `env:"WHATSAPP_PHONE"`
	Currency       string `env:"CURRENCY" envDefault:"USD"`
	ClearOnHandOff bool   `env:"CLEAR_ON_HANDOFF" envDefault:"true"`

	KafkaBrokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	CheckoutTopic          string   `env:"CHECKOUT_TOPIC" envDefault:"storefront-checkout"`
	CheckoutCompletedTopic string   `env:"CHECKOUT_COMPLETED_TOPIC" envDefault:"checkout-completed"`

	SessionIdleTTL  time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendRedis, BackendMongo, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.CatalogBaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL must be set")
	}
	return nil
}

// README: Config loader with env defaults for HTTP, DB, Redis, Kafka and pricing settings.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type CounterBackend string

const (
	CounterMemory   CounterBackend = "memory"
	CounterRedis    CounterBackend = "redis"
	CounterPostgres CounterBackend = "postgres"
)

type PricingConfig struct {
	Timezone        string
	SnapshotRefresh time.Duration
	CounterBackend  CounterBackend
	ConfigFile      string
	Currency        string
}

type Config struct {
	ServiceName string
	Env         string
	LoggerLevel string

	HTTP struct {
		Addr string
	}
	DB struct {
		DSN        string
		Migrations string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Kafka struct {
		Brokers    []string
		AuditTopic string
	}
	Tracing struct {
		JaegerEndpoint string
	}
	Pricing PricingConfig
}

func (c Config) Development() bool {
	return c.Env == "development"
}

func Load() (Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "velo"))
	cfg.Env = cast.ToString(getOrReturnDefault("APP_ENV", "production"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "info"))

	cfg.HTTP.Addr = cast.ToString(getOrReturnDefault("VELO_HTTP_ADDR", ":8080"))
	cfg.DB.DSN = cast.ToString(getOrReturnDefault("VELO_DB_DSN", ""))
	cfg.DB.Migrations = cast.ToString(getOrReturnDefault("VELO_MIGRATIONS", "migrations"))

	cfg.Redis.Addr = cast.ToString(getOrReturnDefault("VELO_REDIS_ADDR", ""))
	cfg.Redis.Password = cast.ToString(getOrReturnDefault("VELO_REDIS_PASSWORD", ""))
	cfg.Redis.DB = cast.ToInt(getOrReturnDefault("VELO_REDIS_DB", 0))

	cfg.Kafka.Brokers = splitList(cast.ToString(getOrReturnDefault("VELO_KAFKA_BROKERS", "")))
	cfg.Kafka.AuditTopic = cast.ToString(getOrReturnDefault("VELO_AUDIT_TOPIC", "pricing.promotion-consumed"))

	cfg.Tracing.JaegerEndpoint = cast.ToString(getOrReturnDefault("VELO_JAEGER_ENDPOINT", ""))

	cfg.Pricing.Timezone = cast.ToString(getOrReturnDefault("VELO_TIMEZONE", "UTC"))
	cfg.Pricing.SnapshotRefresh = cast.ToDuration(getOrReturnDefault("VELO_SNAPSHOT_REFRESH", "30s"))
	cfg.Pricing.CounterBackend = CounterBackend(strings.ToLower(cast.ToString(getOrReturnDefault("VELO_COUNTER_BACKEND", string(CounterMemory)))))
	cfg.Pricing.ConfigFile = cast.ToString(getOrReturnDefault("VELO_CONFIG_FILE", ""))
	cfg.Pricing.Currency = cast.ToString(getOrReturnDefault("VELO_CURRENCY", "EUR"))

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Pricing.CounterBackend {
	case CounterMemory:
	case CounterRedis:
		if c.Redis.Addr == "" {
			return errorf("VELO_COUNTER_BACKEND=redis requires VELO_REDIS_ADDR")
		}
	case CounterPostgres:
		if c.DB.DSN == "" {
			return errorf("VELO_COUNTER_BACKEND=postgres requires VELO_DB_DSN")
		}
	default:
		return errorf("unknown VELO_COUNTER_BACKEND %q", c.Pricing.CounterBackend)
	}
	if c.DB.DSN == "" && c.Pricing.ConfigFile == "" {
		return errorf("one of VELO_DB_DSN or VELO_CONFIG_FILE is required")
	}
	if _, err := time.LoadLocation(c.Pricing.Timezone); err != nil {
		return errorf("invalid VELO_TIMEZONE %q: %v", c.Pricing.Timezone, err)
	}
	if c.Pricing.SnapshotRefresh <= 0 {
		return errorf("VELO_SNAPSHOT_REFRESH must be positive")
	}
	return nil
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

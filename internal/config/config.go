package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// PostgresConfig holds the primary store connection settings
type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// RedisConfig holds Redis connection settings for the read cache
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// CacheConfig holds entitlement read-cache settings
type CacheConfig struct {
	Enabled bool          `json:"enabled"`
	TTL     time.Duration `json:"ttl"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	HTTPAddr string `json:"http_addr"`
	LogLevel string `json:"log_level"`
}

// EngineConfig holds evaluation settings
type EngineConfig struct {
	// StoreTimeout bounds each store lookup during evaluation.
	StoreTimeout time.Duration `json:"store_timeout"`
	// BatchConcurrency caps concurrent items in a batch evaluation.
	BatchConcurrency int `json:"batch_concurrency"`
}

// TelemetryConfig holds tracing settings
type TelemetryConfig struct {
	Enabled    bool    `json:"enabled"`
	Exporter   string  `json:"exporter"`
	Endpoint   string  `json:"endpoint"`
	SampleRate float64 `json:"sample_rate"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Postgres    PostgresConfig  `json:"postgres"`
	Redis       RedisConfig     `json:"redis"`
	Cache       CacheConfig     `json:"cache"`
	Server      ServerConfig    `json:"server"`
	Engine      EngineConfig    `json:"engine"`
	Telemetry   TelemetryConfig `json:"telemetry"`
	CatalogPath string          `json:"catalog_path"`
	AuditPath   string          `json:"audit_path"`
	MetricsNS   string          `json:"metrics_namespace"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			DSN: "",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr: ":8080",
			LogLevel: "info",
		},
		Engine: EngineConfig{
			StoreTimeout:     2 * time.Second,
			BatchConcurrency: 16,
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Exporter:   "otlp-http",
			Endpoint:   "localhost:4318",
			SampleRate: 1.0,
		},
		CatalogPath: "",
		AuditPath:   "",
		MetricsNS:   "entgate",
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ENTGATE_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("ENTGATE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ENTGATE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ENTGATE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("ENTGATE_HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("ENTGATE_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("ENTGATE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("ENTGATE_STORE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.StoreTimeout = d
		}
	}
	if v := os.Getenv("ENTGATE_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("ENTGATE_AUDIT_PATH"); v != "" {
		cfg.AuditPath = v
	}
	if v := os.Getenv("ENTGATE_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = v
	}
}

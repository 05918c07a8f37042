// Package config loads service settings from defaults, an optional YAML file,
// a .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ServiceName    = "inventory-service"
	ServiceVersion = "1.0.0"
)

type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	APIKey          string        `yaml:"api_key"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type DatabaseConfig struct {
	// Driver is mysql, postgres or memory.
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// RedisConfig enables shared idempotency keys when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	KeyTTL   time.Duration `yaml:"key_ttl"`
}

// KafkaConfig enables purchase events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	Workers   int      `yaml:"workers"`
	QueueSize int      `yaml:"queue_size"`
}

type CatalogConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type TelemetryConfig struct {
	// OTLPEndpoint is host:port of an OTLP/HTTP collector. Empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

func Default() Config {
	return Config{
		HTTPAddr:        ":3000",
		GRPCAddr:        ":50051",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			Migrate:         true,
		},
		Redis: RedisConfig{
			PoolSize: 100,
			KeyTTL:   24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic:     "purchase-completed",
			Workers:   4,
			QueueSize: 1000,
		},
		Catalog: CatalogConfig{
			BaseURL:     "http://localhost:3001",
			Timeout:     5 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
		},
		Telemetry: TelemetryConfig{Insecure: true},
	}
}

// Load builds the configuration. A missing .env file is not an error; a
// missing CONFIG_FILE is.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("HTTP_ADDR", &c.HTTPAddr)
	e.str("GRPC_ADDR", &c.GRPCAddr)
	e.str("API_KEY", &c.APIKey)
	e.str("LOG_LEVEL", &c.LogLevel)
	e.duration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)

	e.str("DB_DRIVER", &c.Database.Driver)
	e.str("DB_DSN", &c.Database.DSN)
	e.integer("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	e.integer("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	e.duration("DB_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetime)
	e.boolean("DB_MIGRATE", &c.Database.Migrate)

	e.str("REDIS_ADDR", &c.Redis.Addr)
	e.str("REDIS_PASSWORD", &c.Redis.Password)
	e.integer("REDIS_DB", &c.Redis.DB)
	e.integer("REDIS_POOL_SIZE", &c.Redis.PoolSize)
	e.duration("IDEMPOTENCY_TTL", &c.Redis.KeyTTL)

	e.list("KAFKA_BROKERS", &c.Kafka.Brokers)
	e.str("KAFKA_TOPIC", &c.Kafka.Topic)
	e.integer("KAFKA_WORKERS", &c.Kafka.Workers)
	e.integer("KAFKA_QUEUE_SIZE", &c.Kafka.QueueSize)

	e.str("PRODUCTS_SERVICE_URL", &c.Catalog.BaseURL)
	e.str("PRODUCTS_SERVICE_API_KEY", &c.Catalog.APIKey)
	e.duration("PRODUCTS_SERVICE_TIMEOUT", &c.Catalog.Timeout)
	e.integer("PRODUCTS_SERVICE_MAX_ATTEMPTS", &c.Catalog.MaxAttempts)
	e.duration("PRODUCTS_SERVICE_BASE_DELAY", &c.Catalog.BaseDelay)
	e.duration("PRODUCTS_SERVICE_MAX_DELAY", &c.Catalog.MaxDelay)

	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	e.boolean("OTEL_EXPORTER_OTLP_INSECURE", &c.Telemetry.Insecure)

	return errors.Join(e.errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	switch c.Database.Driver {
	case "memory":
	case "mysql", "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be mysql, postgres or memory, got %q", c.Database.Driver))
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("database pool sizes must not be negative"))
	}
	if c.Catalog.BaseURL == "" {
		errs = append(errs, errors.New("catalog.base_url is required"))
	}
	if c.Catalog.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("catalog.max_attempts must be at least 1, got %d", c.Catalog.MaxAttempts))
	}
	if c.Catalog.Timeout <= 0 {
		errs = append(errs, errors.New("catalog.timeout must be positive"))
	}
	if c.Catalog.BaseDelay < 0 || c.Catalog.MaxDelay < c.Catalog.BaseDelay {
		errs = append(errs, errors.New("catalog delays must satisfy 0 <= base_delay <= max_delay"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}

	return errors.Join(errs...)
}

// EventsEnabled reports whether purchase events go to Kafka.
func (c Config) EventsEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

// duration accepts Go durations ("1.5s") or a bare number of milliseconds.
func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if ms, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

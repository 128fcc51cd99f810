package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type StoreBackend string

const (
	BackendPostgres StoreBackend = "postgres"
	BackendRedis    StoreBackend = "redis"
	BackendMemory   StoreBackend = "memory"
)

type Config struct {
	ProjectID string `env:"PROJECT_ID"`
	Env       string `env:"ENV"       envDefault:"production"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Storage  StorageConfig  `envPrefix:"STORAGE_"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Jobs     JobsConfig     `envPrefix:"JOBS_"`
	Reaper   ReaperConfig   `envPrefix:"REAPER_"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"     envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type StorageConfig struct {
	Bucket    string `env:"BUCKET"`
	Endpoint  string `env:"ENDPOINT"   envDefault:"storage.googleapis.com"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Region    string `env:"REGION"     envDefault:"auto"`
	UseSSL    bool   `env:"USE_SSL"    envDefault:"true"`
	URIScheme string `env:"URI_SCHEME" envDefault:"gs"`
}

type StoreConfig struct {
	Backend StoreBackend `env:"BACKEND" envDefault:"postgres"`
}

type PostgresConfig struct {
	DSN     string `env:"DSN"`
	Migrate bool   `env:"MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"       envDefault:"0"`
}

type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC"   envDefault:"media-jobs.events"`
}

type JobsConfig struct {
	OpTimeout      time.Duration `env:"OP_TIMEOUT"       envDefault:"5s"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"0"`
}

type ReaperConfig struct {
	Grace    time.Duration `env:"GRACE"    envDefault:"1h"`
	Interval time.Duration `env:"INTERVAL" envDefault:"5m"`
	Batch    int           `env:"BATCH"    envDefault:"100"`
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return parse(env.Options{})
}

func LoadFrom(environment map[string]string) (Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// GCS_BUCKET is the name older deployments use.
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = lookup(opts, "GCS_BUCKET")
	}
	cfg.Store.Backend = StoreBackend(strings.ToLower(string(cfg.Store.Backend)))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func lookup(opts env.Options, key string) string {
	if opts.Environment != nil {
		return opts.Environment[key]
	}
	return os.Getenv(key)
}

func (c *Config) Validate() error {
	var errs []error
	if c.ProjectID == "" {
		errs = append(errs, errors.New("PROJECT_ID is required"))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("STORAGE_BUCKET is required"))
	}
	if c.Storage.URIScheme == "" {
		errs = append(errs, errors.New("STORAGE_URI_SCHEME must not be empty"))
	}
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres backend"))
		}
	case BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}
	if c.Jobs.OpTimeout <= 0 {
		errs = append(errs, errors.New("JOBS_OP_TIMEOUT must be positive"))
	}
	if c.Jobs.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("JOBS_MAX_UPLOAD_BYTES must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateSigning is checked only by processes that issue upload grants.
func (c *Config) ValidateSigning() error {
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return errors.New("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required")
	}
	return nil
}

func (c *Config) IsDev() bool {
	e := strings.ToLower(c.Env)
	return e == "development" || e == "dev"
}

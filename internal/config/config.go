package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Log         LogConfig
	DB          DBConfig
	Pipeline    PipelineConfig
	Scheduler   SchedulerConfig
	Kafka       KafkaConfig
	Lock        LockConfig
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

type DBConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"sqlite"`
	Path     string `envconfig:"DB_PATH" default:"./mpesa.db"`
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DB"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

type PipelineConfig struct {
	SourceFile      string        `envconfig:"SOURCE_FILE" default:"./testdata/mpesa_transactions.csv"`
	LookbackDays    int           `envconfig:"LOOKBACK_DAYS" default:"7"`
	FreshnessWindow time.Duration `envconfig:"FRESHNESS_WINDOW" default:"2h"`
}

type SchedulerConfig struct {
	Enabled       bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	Interval      time.Duration `envconfig:"SCHEDULE_INTERVAL" default:"1h"`
	MaxRetries    int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryDelay    time.Duration `envconfig:"RETRY_DELAY" default:"5m"`
	MaxRetryDelay time.Duration `envconfig:"MAX_RETRY_DELAY" default:"30m"`
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"mpesa-fraud-alerts"`
}

// LockConfig configures the distributed run lock. An empty RedisURL keeps
// the guard process-local.
type LockConfig struct {
	RedisURL string        `envconfig:"REDIS_URL"`
	TTL      time.Duration `envconfig:"LOCK_TTL" default:"2h"`
}

// NewConfig loads envFile when it exists, then the process environment.
func NewConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("[config] %s not loaded, using process environment only: %v", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.IsProduction() && cfg.DB.SSLMode == "disable" {
		cfg.DB.SSLMode = "require"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks the combinations envconfig tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	switch c.DB.Type {
	case DBTypeSQLite:
		if c.DB.Path == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case DBTypePostgres:
		for name, v := range map[string]string{
			"POSTGRES_HOST":     c.DB.Host,
			"POSTGRES_USER":     c.DB.User,
			"POSTGRES_PASSWORD": c.DB.Password,
			"POSTGRES_DB":       c.DB.DBName,
		} {
			if v == "" {
				errs = append(errs, fmt.Errorf("%s is required for postgres", name))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_TYPE %q", c.DB.Type))
	}
	if c.Pipeline.LookbackDays < 1 {
		errs = append(errs, errors.New("LOOKBACK_DAYS must be positive"))
	}
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHEDULE_INTERVAL must be positive"))
	}
	if c.Scheduler.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES must not be negative"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when kafka is enabled"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DSN is the pgx connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// MigrationURL is the golang-migrate URL for the pgx/v5 driver.
func (d *DBConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

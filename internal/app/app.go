// Package app assembles the pipeline, its stores and its outer surfaces from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wakala/mpesa-analytics/internal/api"
	"github.com/wakala/mpesa-analytics/internal/config"
	"github.com/wakala/mpesa-analytics/internal/ingestion"
	"github.com/wakala/mpesa-analytics/internal/kafka"
	"github.com/wakala/mpesa-analytics/internal/lock"
	"github.com/wakala/mpesa-analytics/internal/metrics"
	"github.com/wakala/mpesa-analytics/internal/pipeline"
	"github.com/wakala/mpesa-analytics/internal/repository"
	"github.com/wakala/mpesa-analytics/internal/repository/postgres"
	"github.com/wakala/mpesa-analytics/internal/scheduler"
	"github.com/wakala/mpesa-analytics/internal/transform"
)

type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	stores   *repository.Stores
	producer kafka.Producer
	redis    *redis.Client
	registry *prometheus.Registry

	Pipeline  *pipeline.Service
	Scheduler *scheduler.Scheduler
}

// OpenStores opens the backend selected by DB_TYPE.
func OpenStores(ctx context.Context, cfg config.DBConfig, log zerolog.Logger) (*repository.Stores, error) {
	switch cfg.Type {
	case config.DBTypeSQLite:
		log.Info().Str("path", cfg.Path).Msg("initializing sqlite database")
		return repository.OpenSQLite(cfg.Path)
	case config.DBTypePostgres:
		log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("running migrations and connecting to postgres")
		return postgres.Open(ctx, cfg.DSN(), cfg.MigrationURL(), log)
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.Type)
	}
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(a.registry)

	stores, err := OpenStores(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.stores = stores

	if cfg.Kafka.Enabled {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("initializing kafka producer")
		a.producer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init kafka: %w", err)
		}
	} else {
		log.Info().Msg("kafka disabled in configuration")
		a.producer = kafka.NewNoOpProducer(log)
	}

	var schedOpts []scheduler.Option
	if cfg.Lock.RedisURL != "" {
		a.redis, err = lock.Connect(ctx, cfg.Lock.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init run lock: %w", err)
		}
		schedOpts = append(schedOpts, scheduler.WithLocker(lock.NewRedisLock(a.redis, lock.DefaultKey, cfg.Lock.TTL)))
		log.Info().Dur("ttl", cfg.Lock.TTL).Msg("distributed run lock enabled")
	}

	transformer := transform.New(transform.Observers(transform.NewLogObserver(log), collector))
	a.Pipeline = pipeline.NewService(
		ingestion.NewService(cfg.Pipeline.SourceFile, log),
		transformer,
		stores,
		cfg.Pipeline.LookbackDays,
		log,
		pipeline.WithPublisher(a.producer),
		pipeline.WithRecorder(collector),
	)

	schedOpts = append(schedOpts, scheduler.WithRecorder(collector))
	a.Scheduler = scheduler.New(a.Pipeline, scheduler.Config{
		Interval:        cfg.Scheduler.Interval,
		MaxRetries:      cfg.Scheduler.MaxRetries,
		RetryDelay:      cfg.Scheduler.RetryDelay,
		MaxRetryDelay:   cfg.Scheduler.MaxRetryDelay,
		FreshnessWindow: cfg.Pipeline.FreshnessWindow,
	}, log, schedOpts...)

	return a, nil
}

// Router returns the HTTP API.
func (a *App) Router() http.Handler {
	return api.NewRouter(a.stores, a.Scheduler, a.registry, a.log)
}

// Close waits for background runs and releases every resource.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Wait()
	}

	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.stores != nil {
		if err := a.stores.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type PoolConfig struct {
	MaxConns          int
	MinConns          int
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	ApplicationName   string
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:          10,
		MinConns:          1,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    5 * time.Second,
		RetryAttempts:     5,
		RetryDelay:        time.Second,
		ApplicationName:   "mpesa-analytics",
	}
}

// NewPool connects to Postgres, retrying with a doubling delay until the
// database answers a ping.
func NewPool(ctx context.Context, dsn string, cfg PoolConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	conf.MaxConns = int32(cfg.MaxConns)
	conf.MinConns = int32(cfg.MinConns)
	conf.HealthCheckPeriod = cfg.HealthCheckPeriod
	conf.MaxConnLifetime = time.Hour
	conf.MaxConnIdleTime = 5 * time.Minute
	if cfg.ApplicationName != "" {
		conf.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	conf.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	var pool *pgxpool.Pool
	for i := 0; i < cfg.RetryAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryDelay * time.Duration(1<<(i-1))):
			}
		}

		pool, err = pgxpool.NewWithConfig(ctx, conf)
		if err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Int("max_attempts", cfg.RetryAttempts).
				Msg("could not create connection pool")
			continue
		}

		if err = pool.Ping(ctx); err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Msg("database ping failed")
			pool.Close()
			continue
		}

		log.Info().Msg("connected to postgres")
		return pool, nil
	}

	return nil, fmt.Errorf("create pool after %d attempts: %w", cfg.RetryAttempts, err)
}

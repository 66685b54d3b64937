package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wakala/mpesa-analytics/internal/app"
	"github.com/wakala/mpesa-analytics/internal/config"
	"github.com/wakala/mpesa-analytics/internal/logger"
)

func main() {
	cfg, err := config.NewConfig("config.env")
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}

	if err := run(ctx, cfg, a, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, a *app.App, log zerolog.Logger) error {
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	schedDone := make(chan struct{})
	if cfg.Scheduler.Enabled {
		go func() {
			defer close(schedDone)
			a.Scheduler.Start(ctx)
		}()
	} else {
		log.Info().Msg("scheduler disabled, runs only on demand")
		close(schedDone)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", "http://localhost:"+cfg.Port).
			Str("db_type", cfg.DB.Type).
			Str("environment", cfg.Environment).
			Msg("M-Pesa transaction analytics listening")
		log.Info().Msg("endpoints: GET /healthz, GET /metrics, GET /api/v1/{transactions,summaries,summaries/{date},alerts,dashboard,runs/latest}, POST /api/v1/runs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}

	<-schedDone
	if err := a.Close(); err != nil {
		log.Error().Err(err).Msg("failed to release resources")
	}

	log.Info().Msg("application stopped")
	return runErr
}

// Command pipeline runs one M-Pesa ETL task and exits.
//
//	pipeline                  process the lookback window (retried, lock-guarded)
//	pipeline -date 2024-01-15 process one calendar day
//	pipeline -check           fail when nothing was loaded in the freshness window
//	pipeline -report [-date]  print the stored daily summary (default today)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wakala/mpesa-analytics/internal/app"
	"github.com/wakala/mpesa-analytics/internal/config"
	"github.com/wakala/mpesa-analytics/internal/logger"
)

func main() {
	envFile := flag.String("env", "config.env", "optional env file")
	date := flag.String("date", "", "calendar day YYYY-MM-DD")
	check := flag.Bool("check", false, "run the data freshness check")
	report := flag.Bool("report", false, "print the daily summary")
	flag.Parse()

	cfg, err := config.NewConfig(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize pipeline")
	}

	var out any
	switch {
	case *check:
		var n int
		n, err = a.Pipeline.CheckFreshness(ctx, cfg.Pipeline.FreshnessWindow)
		out = map[string]any{"records": n, "window": cfg.Pipeline.FreshnessWindow.String()}
	case *report:
		out, err = a.Pipeline.DailyReport(ctx, *date)
	case *date != "":
		out, err = a.Pipeline.RunForDate(ctx, *date)
	default:
		out, err = a.Scheduler.Trigger(ctx)
	}

	if cerr := a.Close(); cerr != nil {
		log.Error().Err(cerr).Msg("failed to release resources")
	}
	if err != nil {
		log.Error().Err(err).Msg("pipeline task failed")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error().Err(err).Msg("encode result")
		os.Exit(1)
	}
}

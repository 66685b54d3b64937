package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wakala/mpesa-analytics/internal/domain"
	"github.com/wakala/mpesa-analytics/internal/repository"
)

// Extractor supplies raw batches.
type Extractor interface {
	ExtractRecent(ctx context.Context, days int) (*domain.Batch, error)
	ExtractDate(ctx context.Context, day string) (*domain.Batch, error)
}

// Transformer turns a raw batch into canonical records.
type Transformer interface {
	Transform(b *domain.Batch) ([]domain.Transaction, error)
}

// Publisher forwards newly raised fraud alerts downstream.
type Publisher interface {
	PublishFraudAlert(ctx context.Context, alert domain.FraudAlert) error
}

// Recorder receives per-run row counts.
type Recorder interface {
	RowsExtracted(n int)
	RowsLoaded(table string, n int)
	AlertsCreated(n int)
}

type nopRecorder struct{}

func (nopRecorder) RowsExtracted(int)      {}
func (nopRecorder) RowsLoaded(string, int) {}
func (nopRecorder) AlertsCreated(int)      {}

// RunResult summarises one pipeline execution.
type RunResult struct {
	RunID           string          `json:"run_id"`
	TargetDate      string          `json:"target_date,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	DurationMs      int64           `json:"duration_ms"`
	Skipped         bool            `json:"skipped"`
	RowsExtracted   int             `json:"rows_extracted"`
	RawInserted     int             `json:"raw_inserted"`
	RowsTransformed int             `json:"rows_transformed"`
	RowsLoaded      int             `json:"rows_loaded"`
	SummaryDates    []string        `json:"summary_dates"`
	AlertsCreated   int             `json:"alerts_created"`
	AlertsPublished int             `json:"alerts_published"`
	FirstTxnAt      *time.Time      `json:"first_transaction_at,omitempty"`
	LastTxnAt       *time.Time      `json:"last_transaction_at,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// Service runs extract, transform and load against one store backend.
type Service struct {
	extractor    Extractor
	transformer  Transformer
	txns         repository.TransactionStore
	summaries    repository.SummaryStore
	alerts       repository.AlertStore
	publisher    Publisher
	recorder     Recorder
	lookbackDays int
	log          zerolog.Logger
	now          func() time.Time
}

type Option func(*Service)

// WithPublisher forwards new fraud alerts to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder reports row counts to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(
	extractor Extractor,
	transformer Transformer,
	stores *repository.Stores,
	lookbackDays int,
	log zerolog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		extractor:    extractor,
		transformer:  transformer,
		txns:         stores.Transactions,
		summaries:    stores.Summaries,
		alerts:       stores.Alerts,
		recorder:     nopRecorder{},
		lookbackDays: lookbackDays,
		log:          log.With().Str("component", "pipeline").Logger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes the last lookbackDays of source data: raw load for audit,
// transform, canonical load, daily summaries for every loaded date, then
// fraud alerts.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	res := s.begin("")
	log := s.log.With().Str("run_id", res.RunID).Logger()
	log.Info().Int("lookback_days", s.lookbackDays).Msg("pipeline run started")

	batch, err := s.extractor.ExtractRecent(ctx, s.lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	if err := s.process(ctx, log, batch, res); err != nil {
		log.Error().Err(err).Msg("pipeline run failed")
		return nil, err
	}
	return s.finish(log, res), nil
}

// RunForDate processes a single calendar day (YYYY-MM-DD). An empty day means
// yesterday. A day without source rows is skipped.
func (s *Service) RunForDate(ctx context.Context, day string) (*RunResult, error) {
	if day == "" {
		day = s.now().AddDate(0, 0, -1).Format(domain.DateLayout)
	}
	res := s.begin(day)
	log := s.log.With().Str("run_id", res.RunID).Str("date", day).Logger()
	log.Info().Msg("date-specific pipeline started")

	batch, err := s.extractor.ExtractDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", day, err)
	}
	if batch.Len() == 0 {
		log.Info().Msgf("no transactions found for %s, skipping", day)
		res.Skipped = true
		return s.finish(log, res), nil
	}

	if err := s.process(ctx, log, batch, res); err != nil {
		log.Error().Err(err).Msg("date-specific pipeline failed")
		return nil, err
	}
	return s.finish(log, res), nil
}

func (s *Service) process(ctx context.Context, log zerolog.Logger, batch *domain.Batch, res *RunResult) error {
	res.RowsExtracted = batch.Len()
	s.recorder.RowsExtracted(res.RowsExtracted)
	log.Info().Int("rows", res.RowsExtracted).Msg("extracted records")

	n, err := s.txns.InsertRaw(ctx, batch.Rows)
	if err != nil {
		return fmt.Errorf("load raw: %w", err)
	}
	res.RawInserted = n
	s.recorder.RowsLoaded("raw_transactions", n)

	txns, err := s.transformer.Transform(batch)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	res.RowsTransformed = len(txns)

	n, err = s.txns.InsertTransformed(ctx, txns)
	if err != nil {
		return fmt.Errorf("load transformed: %w", err)
	}
	res.RowsLoaded = n
	s.recorder.RowsLoaded("transformed_transactions", n)
	log.Info().Int("transformed", len(txns)).Int("inserted", n).Msg("loaded transformed records")

	for _, day := range distinctDates(txns) {
		if _, err := s.summaries.UpsertDailySummary(ctx, day); err != nil {
			return fmt.Errorf("daily summary %s: %w", day, err)
		}
		res.SummaryDates = append(res.SummaryDates, day)
	}

	alerts, err := s.alerts.CreateFraudAlerts(ctx)
	if err != nil {
		return fmt.Errorf("fraud alerts: %w", err)
	}
	res.AlertsCreated = len(alerts)
	s.recorder.AlertsCreated(len(alerts))
	res.AlertsPublished = s.publish(ctx, log, alerts)

	summarise(txns, res)
	return nil
}

// publish forwards alerts and returns how many were accepted. Alerts are
// already persisted, so a publish failure is logged and the run continues.
func (s *Service) publish(ctx context.Context, log zerolog.Logger, alerts []domain.FraudAlert) int {
	if s.publisher == nil {
		return 0
	}
	published := 0
	for _, a := range alerts {
		if err := s.publisher.PublishFraudAlert(ctx, a); err != nil {
			log.Warn().Err(err).Str("transaction_id", a.TransactionID).Msg("failed to publish fraud alert")
			continue
		}
		published++
	}
	return published
}

// CheckFreshness fails with domain.ErrNoFreshData when nothing was loaded into
// the canonical table within window.
func (s *Service) CheckFreshness(ctx context.Context, window time.Duration) (int, error) {
	count, err := s.txns.CountLoadedSince(ctx, s.now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("freshness check: %w", err)
	}
	if count == 0 {
		s.log.Warn().Dur("window", window).Msg("no new records loaded")
		return 0, fmt.Errorf("%w (window %s)", domain.ErrNoFreshData, window)
	}
	s.log.Info().Int("records", count).Dur("window", window).Msg("latest data validation passed")
	return count, nil
}

// DailyReport returns the stored summary for day; an empty day means today.
func (s *Service) DailyReport(ctx context.Context, day string) (*domain.DailySummary, error) {
	if day == "" {
		day = s.now().Format(domain.DateLayout)
	}
	summary, err := s.summaries.GetByDate(ctx, day)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Info().Str("date", day).Msg("no data available for report date")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("daily report %s: %w", day, err)
	}
	return summary, nil
}

func (s *Service) begin(day string) *RunResult {
	return &RunResult{
		RunID:        uuid.NewString(),
		TargetDate:   day,
		StartedAt:    s.now(),
		SummaryDates: []string{},
		TotalAmount:  decimal.Zero,
	}
}

func (s *Service) finish(log zerolog.Logger, res *RunResult) *RunResult {
	res.FinishedAt = s.now()
	res.DurationMs = res.FinishedAt.Sub(res.StartedAt).Milliseconds()

	ev := log.Info().
		Int("rows_extracted", res.RowsExtracted).
		Int("rows_loaded", res.RowsLoaded).
		Strs("summary_dates", res.SummaryDates).
		Int("alerts_created", res.AlertsCreated).
		Str("total_amount", res.TotalAmount.StringFixed(2)).
		Int64("duration_ms", res.DurationMs)
	if res.FirstTxnAt != nil {
		ev = ev.Time("first_transaction_at", *res.FirstTxnAt).Time("last_transaction_at", *res.LastTxnAt)
	}
	ev.Msg("pipeline run completed")
	return res
}

func distinctDates(txns []domain.Transaction) []string {
	seen := make(map[string]bool)
	var days []string
	for _, t := range txns {
		if !seen[t.DatePartDate] {
			seen[t.DatePartDate] = true
			days = append(days, t.DatePartDate)
		}
	}
	sort.Strings(days)
	return days
}

func summarise(txns []domain.Transaction, res *RunResult) {
	for i := range txns {
		t := txns[i].TransactionDate
		res.TotalAmount = res.TotalAmount.Add(txns[i].Amount)
		if res.FirstTxnAt == nil || t.Before(*res.FirstTxnAt) {
			res.FirstTxnAt = &t
		}
		if res.LastTxnAt == nil || t.After(*res.LastTxnAt) {
			res.LastTxnAt = &t
		}
	}
}

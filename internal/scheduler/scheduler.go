// Package scheduler runs the pipeline on a fixed interval with at most one
// active run and exponential-backoff retries.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/wakala/mpesa-analytics/internal/domain"
	"github.com/wakala/mpesa-analytics/internal/lock"
	"github.com/wakala/mpesa-analytics/internal/pipeline"
)

const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusConflict = "conflict"
)

// Pipeline is the work the scheduler drives.
type Pipeline interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
	CheckFreshness(ctx context.Context, window time.Duration) (int, error)
	DailyReport(ctx context.Context, day string) (*domain.DailySummary, error)
}

// Locker guards runs across processes.
type Locker interface {
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

type RunRecorder interface {
	RunFinished(status string, d time.Duration)
}

type Config struct {
	Interval        time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MaxRetryDelay   time.Duration
	FreshnessWindow time.Duration
}

// RunStatus describes the latest orchestrated execution.
type RunStatus struct {
	Status     string              `json:"status"`
	Attempts   int                 `json:"attempts"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Error      string              `json:"error,omitempty"`
	Result     *pipeline.RunResult `json:"result,omitempty"`
}

type Scheduler struct {
	pipeline Pipeline
	locker   Locker
	recorder RunRecorder
	cfg      Config
	log      zerolog.Logger

	running sync.Mutex
	wg      sync.WaitGroup

	mu   sync.RWMutex
	last *RunStatus
}

type Option func(*Scheduler)

// WithLocker adds a distributed guard on top of the in-process one.
func WithLocker(l Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

func WithRecorder(r RunRecorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

func New(p Pipeline, cfg Config, log zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		pipeline: p,
		cfg:      cfg,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the pipeline once immediately and then on every interval tick
// until ctx is done. Ticks that fire during a run are dropped.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.cfg.Interval).Msg("scheduler started")
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.Trigger(ctx)
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		s.log.Info().Msg("previous run still active, skipping tick")
	case err != nil:
		s.log.Error().Err(err).Msg("scheduled run failed")
	}
}

// Trigger executes one guarded, retried run and blocks until it finishes. It
// fails with domain.ErrRunInProgress when another run holds the guard.
func (s *Scheduler) Trigger(ctx context.Context) (*pipeline.RunResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.execute(ctx)
}

// TriggerAsync takes the guard and runs in the background. The run outlives
// ctx's cancellation; Wait blocks until it is done.
func (s *Scheduler) TriggerAsync(ctx context.Context) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		if _, err := s.execute(context.WithoutCancel(ctx)); err != nil {
			s.log.Error().Err(err).Msg("triggered run failed")
		}
	}()
	return nil
}

// Wait blocks until background runs have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Running reports whether a run holds the local guard.
func (s *Scheduler) Running() bool {
	if s.running.TryLock() {
		s.running.Unlock()
		return false
	}
	return true
}

// LastRun returns the latest finished execution, or nil.
func (s *Scheduler) LastRun() *RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Scheduler) acquire(ctx context.Context) (func(), error) {
	if !s.running.TryLock() {
		s.record(StatusConflict, 0)
		return nil, domain.ErrRunInProgress
	}
	if s.locker == nil {
		return s.running.Unlock, nil
	}

	unlock, err := s.locker.Acquire(ctx)
	if err != nil {
		s.running.Unlock()
		if errors.Is(err, lock.ErrLocked) {
			s.record(StatusConflict, 0)
			return nil, fmt.Errorf("%w: %w", domain.ErrRunInProgress, err)
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}

	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Msg("failed to release run lock")
		}
		s.running.Unlock()
	}, nil
}

func (s *Scheduler) execute(ctx context.Context) (*pipeline.RunResult, error) {
	st := &RunStatus{StartedAt: time.Now()}

	var result *pipeline.RunResult
	op := func() error {
		st.Attempts++
		res, err := s.pipeline.Run(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrSchema) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.log.Warn().Err(err).Int("attempt", st.Attempts).Dur("retry_in", wait).Msg("pipeline run failed, retrying")
	}

	err := backoff.RetryNotify(op, s.backoff(ctx), notify)

	st.FinishedAt = time.Now()
	st.Result = result
	if err != nil {
		st.Status = StatusFailure
		st.Error = err.Error()
	} else {
		st.Status = StatusSuccess
	}
	s.finish(st)

	if err != nil {
		return nil, fmt.Errorf("pipeline failed after %d attempts: %w", st.Attempts, err)
	}

	s.postRun(ctx)
	return result, nil
}

func (s *Scheduler) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryDelay
	b.MaxInterval = s.cfg.MaxRetryDelay
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	retries := s.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// postRun checks that the run produced fresh rows and logs today's summary.
// Neither outcome changes the run's status.
func (s *Scheduler) postRun(ctx context.Context) {
	if s.cfg.FreshnessWindow > 0 {
		if _, err := s.pipeline.CheckFreshness(ctx, s.cfg.FreshnessWindow); err != nil {
			s.log.Error().Err(err).Msg("data quality check failed")
		}
	}

	summary, err := s.pipeline.DailyReport(ctx, "")
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error().Err(err).Msg("daily report failed")
		}
		return
	}
	s.log.Info().
		Str("date", summary.SummaryDate).
		Int("total_transactions", summary.TotalTransactions).
		Str("total_amount", summary.TotalAmount.StringFixed(2)).
		Int("successful", summary.SuccessfulTransactions).
		Int("failed", summary.FailedTransactions).
		Int("fraud_attempts", summary.FraudAttempts).
		Msg("daily transaction summary")
}

func (s *Scheduler) finish(st *RunStatus) {
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	s.record(st.Status, st.FinishedAt.Sub(st.StartedAt))

	ev := s.log.Info()
	if st.Status != StatusSuccess {
		ev = s.log.Error().Str("error", st.Error)
	}
	ev.Str("status", st.Status).Int("attempts", st.Attempts).
		Dur("duration", st.FinishedAt.Sub(st.StartedAt)).Msg("pipeline execution finished")
}

func (s *Scheduler) record(status string, d time.Duration) {
	if s.recorder != nil {
		s.recorder.RunFinished(status, d)
	}
}

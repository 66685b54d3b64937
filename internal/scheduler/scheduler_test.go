package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/mpesa-analytics/internal/domain"
	"github.com/wakala/mpesa-analytics/internal/lock"
	"github.com/wakala/mpesa-analytics/internal/pipeline"
)

type fakePipeline struct {
	mu        sync.Mutex
	runs      int
	failFirst int
	err       error
	block     chan struct{}
	started   chan struct{}
	checks    int
	reports   int
}

func (p *fakePipeline) Run(context.Context) (*pipeline.RunResult, error) {
	p.mu.Lock()
	p.runs++
	n := p.runs
	p.mu.Unlock()

	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.block != nil {
		<-p.block
	}
	if p.err != nil {
		return nil, p.err
	}
	if n <= p.failFirst {
		return nil, errors.New("database is locked")
	}
	return &pipeline.RunResult{RunID: "run-1", RowsLoaded: 10}, nil
}

func (p *fakePipeline) CheckFreshness(context.Context, time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	return 10, nil
}

func (p *fakePipeline) DailyReport(context.Context, string) (*domain.DailySummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports++
	return nil, domain.ErrNotFound
}

func (p *fakePipeline) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *statusRecorder) RunFinished(status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

type fakeLocker struct {
	err      error
	released int
}

func (l *fakeLocker) Acquire(context.Context) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

func testConfig() Config {
	return Config{
		Interval:        time.Hour,
		MaxRetries:      3,
		RetryDelay:      time.Millisecond,
		MaxRetryDelay:   5 * time.Millisecond,
		FreshnessWindow: 2 * time.Hour,
	}
}

func TestTrigger_Success(t *testing.T) {
	p := &fakePipeline{}
	rec := &statusRecorder{}
	s := New(p, testConfig(), zerolog.Nop(), WithRecorder(rec))

	res, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.RowsLoaded)
	assert.Equal(t, 1, p.checks)
	assert.Equal(t, 1, p.reports)
	assert.Equal(t, []string{StatusSuccess}, rec.statuses)

	last := s.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, StatusSuccess, last.Status)
	assert.Equal(t, 1, last.Attempts)
	assert.False(t, s.Running())
}

func TestTrigger_RetriesTransientFailures(t *testing.T) {
	p := &fakePipeline{failFirst: 2}
	s := New(p, testConfig(), zerolog.Nop())

	_, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, p.Runs())
	assert.Equal(t, 3, s.LastRun().Attempts)
}

func TestTrigger_GivesUpAfterMaxRetries(t *testing.T) {
	p := &fakePipeline{failFirst: 100}
	rec := &statusRecorder{}
	cfg := testConfig()
	cfg.MaxRetries = 2
	s := New(p, cfg, zerolog.Nop(), WithRecorder(rec))

	_, err := s.Trigger(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, p.Runs())
	assert.Equal(t, []string{StatusFailure}, rec.statuses)
	assert.Equal(t, 0, p.checks, "post-run tasks only follow a success")
}

func TestTrigger_SchemaErrorIsNotRetried(t *testing.T) {
	p := &fakePipeline{err: &domain.SchemaError{Missing: []string{"amount"}}}
	s := New(p, testConfig(), zerolog.Nop())

	_, err := s.Trigger(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchema)
	assert.Equal(t, 1, p.Runs())
}

func TestTrigger_RejectsOverlappingRun(t *testing.T) {
	p := &fakePipeline{block: make(chan struct{}), started: make(chan struct{}, 1)}
	rec := &statusRecorder{}
	s := New(p, testConfig(), zerolog.Nop(), WithRecorder(rec))

	require.NoError(t, s.TriggerAsync(context.Background()))
	<-p.started
	assert.True(t, s.Running())

	_, err := s.Trigger(context.Background())
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.ErrorIs(t, s.TriggerAsync(context.Background()), domain.ErrRunInProgress)

	close(p.block)
	s.Wait()

	assert.Equal(t, 1, p.Runs())
	assert.False(t, s.Running())
	assert.Equal(t, []string{StatusConflict, StatusConflict, StatusSuccess}, rec.statuses)
}

func TestTrigger_DistributedLockHeld(t *testing.T) {
	p := &fakePipeline{}
	s := New(p, testConfig(), zerolog.Nop(), WithLocker(&fakeLocker{err: lock.ErrLocked}))

	_, err := s.Trigger(context.Background())
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.ErrorIs(t, err, lock.ErrLocked)
	assert.Zero(t, p.Runs())
	assert.False(t, s.Running(), "local guard is released when the lock is refused")
}

func TestTrigger_ReleasesDistributedLock(t *testing.T) {
	l := &fakeLocker{}
	s := New(&fakePipeline{}, testConfig(), zerolog.Nop(), WithLocker(l))

	_, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, l.released)
}

func TestTrigger_LockBackendError(t *testing.T) {
	s := New(&fakePipeline{}, testConfig(), zerolog.Nop(), WithLocker(&fakeLocker{err: errors.New("connection refused")}))

	_, err := s.Trigger(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRunInProgress)
	assert.Contains(t, err.Error(), "acquire run lock")
}

func TestStart_RunsImmediatelyAndStops(t *testing.T) {
	p := &fakePipeline{}
	s := New(p, testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return p.Runs() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 1, p.Runs())
}

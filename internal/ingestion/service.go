package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

// Service extracts transaction batches from a source export file.
type Service struct {
	path string
	log  zerolog.Logger
	now  func() time.Time
}

// NewService creates an extractor reading path. The format follows the file
// extension: .json, .psv (pipe-delimited) or CSV for anything else.
func NewService(path string, log zerolog.Logger) *Service {
	return &Service{
		path: path,
		log:  log.With().Str("component", "ingestion").Logger(),
		now:  time.Now,
	}
}

// ExtractFile reads the whole source file.
func (s *Service) ExtractFile(ctx context.Context) (*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	var b *domain.Batch
	format := strings.ToLower(filepath.Ext(s.path))
	switch format {
	case ".json":
		b, err = ParseJSON(data)
	case ".psv":
		b, err = ParseCSV(bytes.NewReader(data), '|')
	default:
		b, err = ParseCSV(bytes.NewReader(data), ',')
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	s.log.Info().Str("path", s.path).Int("rows", b.Len()).Msg("extracted source file")
	return b, nil
}

// ExtractRecent returns rows dated within the last days days. Rows whose date
// cannot be read are passed through; the cleaner drops and counts them.
func (s *Service) ExtractRecent(ctx context.Context, days int) (*domain.Batch, error) {
	b, err := s.ExtractFile(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().AddDate(0, 0, -days)
	recent := b.Filter(func(r domain.RawTransaction) bool {
		t, ok := rowDate(r)
		return !ok || !t.Before(cutoff)
	})

	s.log.Info().
		Int("days", days).
		Time("since", cutoff).
		Int("rows", recent.Len()).
		Msg("extracted recent transactions")
	return recent, nil
}

// ExtractDate returns the rows whose transaction_date falls on day
// (YYYY-MM-DD).
func (s *Service) ExtractDate(ctx context.Context, day string) (*domain.Batch, error) {
	if _, err := time.Parse(domain.DateLayout, day); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", day, err)
	}

	b, err := s.ExtractFile(ctx)
	if err != nil {
		return nil, err
	}

	onDay := b.Filter(func(r domain.RawTransaction) bool {
		t, ok := rowDate(r)
		return ok && t.Format(domain.DateLayout) == day
	})

	s.log.Info().Str("date", day).Int("rows", onDay.Len()).Msg("extracted transactions for date")
	return onDay, nil
}

func rowDate(r domain.RawTransaction) (time.Time, bool) {
	if r.TransactionDate == nil {
		return time.Time{}, false
	}
	t, err := domain.ParseTimestamp(*r.TransactionDate)
	return t, err == nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wakala/mpesa-analytics/internal/domain"
	"github.com/wakala/mpesa-analytics/internal/repository"
)

type SummaryRepo struct {
	db DBTX
}

func NewSummaryRepo(db DBTX) *SummaryRepo {
	return &SummaryRepo{db: db}
}

func (r *SummaryRepo) UpsertDailySummary(ctx context.Context, date string) (*domain.DailySummary, error) {
	const op = "postgres.UpsertDailySummary"

	s, err := scanSummary(r.db.QueryRow(ctx, UpsertDailySummaryQuery, domain.HighRiskThreshold, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", op, date, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, date, err)
	}
	return s, nil
}

func (r *SummaryRepo) GetByDate(ctx context.Context, date string) (*domain.DailySummary, error) {
	s, err := scanSummary(r.db.QueryRow(ctx, GetSummaryQuery, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres.GetSummary: %w", err)
	}
	return s, nil
}

func (r *SummaryRepo) List(ctx context.Context, f repository.SummaryFilter) ([]domain.DailySummary, int, error) {
	const op = "postgres.ListSummaries"

	var w where
	if f.From != "" {
		w.add("summary_date >= ?::date", f.From)
	}
	if f.To != "" {
		w.add("summary_date <= ?::date", f.To)
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM daily_transaction_summary"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	q := "SELECT " + summaryColumns + " FROM daily_transaction_summary" + w.String() +
		" ORDER BY summary_date DESC" + w.page(f.Page, f.Limit)

	rows, err := r.db.Query(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	summaries := []domain.DailySummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		summaries = append(summaries, *s)
	}
	return summaries, total, rows.Err()
}

func scanSummary(row pgx.Row) (*domain.DailySummary, error) {
	var s domain.DailySummary
	err := row.Scan(
		&s.SummaryDate, &s.TotalTransactions, &s.TotalAmount, &s.TotalFees,
		&s.AvgTransactionAmount, &s.MaxTransactionAmount, &s.UniqueUsers,
		&s.FraudAttempts, &s.SuccessfulTransactions, &s.FailedTransactions,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

const summaryColumns = `summary_date, total_transactions, total_amount, total_fees,
	avg_transaction_amount, max_transaction_amount, unique_users,
	fraud_attempts, successful_transactions, failed_transactions`

type SummaryRepo struct {
	db *sql.DB
}

func NewSummaryRepo(db *sql.DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

// UpsertDailySummary recomputes the aggregate row for date (YYYY-MM-DD) from
// the canonical table in a single statement and returns it. ErrNotFound is
// returned when no canonical rows fall on date.
func (r *SummaryRepo) UpsertDailySummary(ctx context.Context, date string) (*domain.DailySummary, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO daily_transaction_summary (`+summaryColumns+`)
		SELECT
			date_part_date,
			COUNT(*),
			ROUND(SUM(amount), 2),
			ROUND(SUM(fee), 2),
			ROUND(AVG(amount), 2),
			MAX(amount),
			COUNT(DISTINCT sender_phone),
			COUNT(CASE WHEN fraud_risk_score > ? THEN 1 END),
			COUNT(CASE WHEN status = 'COMPLETED' THEN 1 END),
			COUNT(CASE WHEN status = 'FAILED' THEN 1 END)
		FROM transformed_transactions
		WHERE date_part_date = ?
		GROUP BY date_part_date
		ON CONFLICT(summary_date) DO UPDATE SET
			total_transactions = excluded.total_transactions,
			total_amount = excluded.total_amount,
			total_fees = excluded.total_fees,
			avg_transaction_amount = excluded.avg_transaction_amount,
			max_transaction_amount = excluded.max_transaction_amount,
			unique_users = excluded.unique_users,
			fraud_attempts = excluded.fraud_attempts,
			successful_transactions = excluded.successful_transactions,
			failed_transactions = excluded.failed_transactions
		RETURNING `+summaryColumns,
		domain.HighRiskThreshold, date,
	)

	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("upsert summary %s: %w", date, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert summary %s: %w", date, err)
	}
	return s, nil
}

func (r *SummaryRepo) GetByDate(ctx context.Context, date string) (*domain.DailySummary, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+summaryColumns+" FROM daily_transaction_summary WHERE summary_date = ?", date)
	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return s, nil
}

func (r *SummaryRepo) List(ctx context.Context, f SummaryFilter) ([]domain.DailySummary, int, error) {
	where, args := buildSummaryWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_transaction_summary"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	limit, offset := Pagination(f.Page, f.Limit)
	q := "SELECT " + summaryColumns + " FROM daily_transaction_summary" + where +
		" ORDER BY summary_date DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	summaries := []domain.DailySummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		summaries = append(summaries, *s)
	}
	return summaries, total, rows.Err()
}

func buildSummaryWhere(f SummaryFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.From != "" {
		clauses = append(clauses, "summary_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "summary_date <= ?")
		args = append(args, f.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanSummary(row rowScanner) (*domain.DailySummary, error) {
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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wakala/mpesa-analytics/internal/domain"
	"github.com/wakala/mpesa-analytics/internal/repository"
)

type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) InsertRaw(ctx context.Context, rows []domain.RawTransaction) (int, error) {
	const op = "postgres.InsertRaw"

	n, err := r.bulkInsert(ctx, InsertRawQuery, len(rows), func(i int) []any {
		row := &rows[i]
		return []any{
			row.TransactionID, row.SenderPhone, row.ReceiverPhone, row.TransactionType,
			row.Amount, row.Fee, row.TransactionDate, row.Location, row.Currency,
			row.Status, row.FraudRiskScore, row.MerchantID, row.ReferenceNumber,
			row.Channel, row.Category,
		}
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (r *TransactionRepo) InsertTransformed(ctx context.Context, txns []domain.Transaction) (int, error) {
	const op = "postgres.InsertTransformed"

	n, err := r.bulkInsert(ctx, InsertTransformedQuery, len(txns), func(i int) []any {
		tx := &txns[i]
		return []any{
			tx.TransactionID, tx.SenderPhone, tx.ReceiverPhone, tx.TransactionType,
			tx.Amount, tx.Fee, tx.TransactionDate, tx.DatePartDate,
			tx.Year, tx.Month, tx.DayOfWeek, tx.HourOfDay, tx.Location, tx.Currency,
			tx.Status, tx.FraudRiskScore, string(tx.FraudCategory), tx.MerchantID,
			tx.ReferenceNumber, tx.Channel, tx.Category, tx.SenderRegion,
			tx.ReceiverRegion, string(tx.TransactionVolumeCategory),
			tx.IsSuspiciousVelocity, tx.TimeSincePrevTransaction,
		}
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (r *TransactionRepo) bulkInsert(ctx context.Context, query string, n int, args func(i int) []any) (int, error) {
	if n == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for i := 0; i < n; i++ {
		tag, err := tx.Exec(ctx, query, args(i)...)
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *TransactionRepo) List(ctx context.Context, f repository.TransactionFilter) ([]domain.Transaction, int, error) {
	const op = "postgres.ListTransactions"

	var w where
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.TransactionType != "" {
		w.add("transaction_type = ?", f.TransactionType)
	}
	if f.Region != "" {
		w.add("sender_region = ?", f.Region)
	}
	if f.FraudCategory != "" {
		w.add("fraud_category = ?", f.FraudCategory)
	}
	if f.Sender != "" {
		w.add("sender_phone = ?", f.Sender)
	}
	if f.SuspiciousOnly {
		w.raw("is_suspicious_velocity = 1")
	}
	if f.From != nil {
		w.add("transaction_date >= ?", *f.From)
	}
	if f.To != nil {
		w.add("transaction_date <= ?", *f.To)
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM transformed_transactions"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	q := "SELECT " + selectCanonical + " FROM transformed_transactions" + w.String() +
		" ORDER BY transaction_date DESC, transaction_key DESC"
	q += w.page(f.Page, f.Limit)

	rows, err := r.db.Query(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		txns = append(txns, *tx)
	}
	return txns, total, rows.Err()
}

func (r *TransactionRepo) CountLoadedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, CountLoadedSinceQuery, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres.CountLoadedSince: %w", err)
	}
	return count, nil
}

func (r *TransactionRepo) GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	s := &repository.DashboardStats{}
	err := r.db.QueryRow(ctx, DashboardStatsQuery, domain.HighRiskThreshold).Scan(
		&s.TotalTransactions, &s.TotalAmount, &s.TotalFees, &s.UniqueUsers,
		&s.Successful, &s.Failed, &s.HighRisk, &s.SuspiciousVelocity, &s.OpenAlerts,
		&s.FirstTransactionDay, &s.LastTransactionDay,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.DashboardStats: %w", err)
	}
	return s, nil
}

func (r *TransactionRepo) GetVolumeByRegion(ctx context.Context) ([]repository.RegionVolume, error) {
	rows, err := r.db.Query(ctx, VolumeByRegionQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres.VolumeByRegion: %w", err)
	}
	defer rows.Close()

	result := []repository.RegionVolume{}
	for rows.Next() {
		var rv repository.RegionVolume
		if err := rows.Scan(&rv.Region, &rv.Transactions, &rv.Amount); err != nil {
			return nil, err
		}
		result = append(result, rv)
	}
	return result, rows.Err()
}

func (r *TransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+selectCanonical+" FROM transformed_transactions WHERE transaction_id = $1", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres.GetByID: %w", err)
	}
	return tx, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var fraudCategory, volumeCategory string

	err := row.Scan(
		&tx.TransactionID, &tx.SenderPhone, &tx.ReceiverPhone, &tx.TransactionType,
		&tx.Amount, &tx.Fee, &tx.TransactionDate, &tx.DatePartDate, &tx.Year, &tx.Month,
		&tx.DayOfWeek, &tx.HourOfDay, &tx.Location, &tx.Currency, &tx.Status,
		&tx.FraudRiskScore, &fraudCategory, &tx.MerchantID, &tx.ReferenceNumber,
		&tx.Channel, &tx.Category, &tx.SenderRegion, &tx.ReceiverRegion,
		&volumeCategory, &tx.IsSuspiciousVelocity, &tx.TimeSincePrevTransaction,
	)
	if err != nil {
		return nil, err
	}

	tx.FraudCategory = domain.FraudCategory(fraudCategory)
	tx.TransactionVolumeCategory = domain.VolumeCategory(volumeCategory)
	if tx.DayOfWeek >= 5 {
		tx.IsWeekend = 1
	}
	return &tx, nil
}

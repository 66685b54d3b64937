package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

const rawColumns = `transaction_id, sender_phone, receiver_phone, transaction_type,
	amount, fee, transaction_date, location, currency, status, fraud_risk_score,
	merchant_id, reference_number, channel, category, load_timestamp`

// canonicalColumns follows domain.CanonicalColumns.
const canonicalColumns = `transaction_id, sender_phone, receiver_phone, transaction_type,
	amount, fee, transaction_date, date_part_date, year, month, day_of_week,
	hour_of_day, location, currency, status, fraud_risk_score, fraud_category,
	merchant_id, reference_number, channel, category, sender_region,
	receiver_region, transaction_volume_category, is_suspicious_velocity,
	time_since_prev_transaction`

type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// InsertRaw stores a batch as received for audit. Rows whose transaction_id is
// already stored are skipped.
func (r *TransactionRepo) InsertRaw(ctx context.Context, rows []domain.RawTransaction) (int, error) {
	loadedAt := formatTime(time.Now())
	return r.bulkInsert(ctx,
		`INSERT OR IGNORE INTO raw_transactions (`+rawColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		len(rows), func(i int) []any {
			row := &rows[i]
			return []any{
				row.TransactionID, row.SenderPhone, row.ReceiverPhone, row.TransactionType,
				row.Amount, row.Fee, row.TransactionDate, row.Location, row.Currency,
				row.Status, row.FraudRiskScore, row.MerchantID, row.ReferenceNumber,
				row.Channel, row.Category, loadedAt,
			}
		})
}

// InsertTransformed stores canonical records. A transaction_id that is already
// stored keeps its first version.
func (r *TransactionRepo) InsertTransformed(ctx context.Context, txns []domain.Transaction) (int, error) {
	loadedAt := formatTime(time.Now())
	return r.bulkInsert(ctx,
		`INSERT OR IGNORE INTO transformed_transactions (`+canonicalColumns+`, load_timestamp)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		len(txns), func(i int) []any {
			return append(canonicalArgs(&txns[i]), loadedAt)
		})
}

func (r *TransactionRepo) bulkInsert(ctx context.Context, query string, n int, args func(i int) []any) (int, error) {
	if n == 0 {
		return 0, nil
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := 0; i < n; i++ {
		res, err := stmt.ExecContext(ctx, args(i)...)
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func canonicalArgs(tx *domain.Transaction) []any {
	return []any{
		tx.TransactionID, tx.SenderPhone, tx.ReceiverPhone, tx.TransactionType,
		tx.Amount, tx.Fee, formatTime(tx.TransactionDate), tx.DatePartDate,
		tx.Year, tx.Month, tx.DayOfWeek, tx.HourOfDay, tx.Location, tx.Currency,
		tx.Status, tx.FraudRiskScore, string(tx.FraudCategory), tx.MerchantID,
		tx.ReferenceNumber, tx.Channel, tx.Category, tx.SenderRegion,
		tx.ReceiverRegion, string(tx.TransactionVolumeCategory),
		tx.IsSuspiciousVelocity, tx.TimeSincePrevTransaction,
	}
}

func (r *TransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+canonicalColumns+" FROM transformed_transactions WHERE transaction_id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int, error) {
	where, args := buildTransactionWhere(f)

	var total int
	countSQL := "SELECT COUNT(*) FROM transformed_transactions" + where
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	limit, offset := Pagination(f.Page, f.Limit)
	querySQL := "SELECT " + canonicalColumns + " FROM transformed_transactions" + where +
		" ORDER BY transaction_date DESC, transaction_key DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		txns = append(txns, *tx)
	}
	return txns, total, rows.Err()
}

// CountLoadedSince counts canonical rows loaded at or after since.
func (r *TransactionRepo) CountLoadedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transformed_transactions WHERE load_timestamp >= ?",
		formatTime(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count loaded: %w", err)
	}
	return count, nil
}

func (r *TransactionRepo) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	s := &DashboardStats{}
	var first, last sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			ROUND(COALESCE(SUM(amount), 0), 2),
			ROUND(COALESCE(SUM(fee), 0), 2),
			COUNT(DISTINCT sender_phone),
			COALESCE(SUM(CASE WHEN status='COMPLETED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='FAILED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN fraud_risk_score > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_suspicious_velocity), 0),
			(SELECT COUNT(*) FROM fraud_alerts WHERE status = 'OPEN'),
			MIN(date_part_date),
			MAX(date_part_date)
		FROM transformed_transactions
	`, domain.HighRiskThreshold).Scan(&s.TotalTransactions, &s.TotalAmount, &s.TotalFees,
		&s.UniqueUsers, &s.Successful, &s.Failed, &s.HighRisk, &s.SuspiciousVelocity,
		&s.OpenAlerts, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	s.FirstTransactionDay = nullString(first)
	s.LastTransactionDay = nullString(last)
	return s, nil
}

func (r *TransactionRepo) GetVolumeByRegion(ctx context.Context) ([]RegionVolume, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender_region, COUNT(*), ROUND(COALESCE(SUM(amount), 0), 2)
		FROM transformed_transactions
		GROUP BY sender_region
		ORDER BY sender_region
	`)
	if err != nil {
		return nil, fmt.Errorf("volume by region: %w", err)
	}
	defer rows.Close()

	result := []RegionVolume{}
	for rows.Next() {
		var rv RegionVolume
		if err := rows.Scan(&rv.Region, &rv.Transactions, &rv.Amount); err != nil {
			return nil, err
		}
		result = append(result, rv)
	}
	return result, rows.Err()
}

// --- helpers ---

func buildTransactionWhere(f TransactionFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.TransactionType != "" {
		clauses = append(clauses, "transaction_type = ?")
		args = append(args, f.TransactionType)
	}
	if f.Region != "" {
		clauses = append(clauses, "sender_region = ?")
		args = append(args, f.Region)
	}
	if f.FraudCategory != "" {
		clauses = append(clauses, "fraud_category = ?")
		args = append(args, f.FraudCategory)
	}
	if f.Sender != "" {
		clauses = append(clauses, "sender_phone = ?")
		args = append(args, f.Sender)
	}
	if f.SuspiciousOnly {
		clauses = append(clauses, "is_suspicious_velocity = 1")
	}
	if f.From != nil {
		clauses = append(clauses, "transaction_date >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "transaction_date <= ?")
		args = append(args, formatTime(*f.To))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var date, fraudCategory, volumeCategory string
	var since sql.NullFloat64

	err := row.Scan(
		&tx.TransactionID, &tx.SenderPhone, &tx.ReceiverPhone, &tx.TransactionType,
		&tx.Amount, &tx.Fee, &date, &tx.DatePartDate, &tx.Year, &tx.Month,
		&tx.DayOfWeek, &tx.HourOfDay, &tx.Location, &tx.Currency, &tx.Status,
		&tx.FraudRiskScore, &fraudCategory, &tx.MerchantID, &tx.ReferenceNumber,
		&tx.Channel, &tx.Category, &tx.SenderRegion, &tx.ReceiverRegion,
		&volumeCategory, &tx.IsSuspiciousVelocity, &since,
	)
	if err != nil {
		return nil, err
	}

	tx.TransactionDate, err = parseStoredTime(date)
	if err != nil {
		return nil, err
	}
	tx.FraudCategory = domain.FraudCategory(fraudCategory)
	tx.TransactionVolumeCategory = domain.VolumeCategory(volumeCategory)
	if since.Valid {
		v := since.Float64
		tx.TimeSincePrevTransaction = &v
	}
	if tx.DayOfWeek >= 5 {
		tx.IsWeekend = 1
	}
	return &tx, nil
}

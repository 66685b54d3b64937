package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/mpesa-analytics/internal/domain"
	"github.com/wakala/mpesa-analytics/internal/repository"
)

var summaryCols = []string{
	"summary_date", "total_transactions", "total_amount", "total_fees",
	"avg_transaction_amount", "max_transaction_amount", "unique_users",
	"fraud_attempts", "successful_transactions", "failed_transactions",
}

var alertCols = []string{
	"alert_id", "transaction_id", "alert_timestamp", "risk_score", "alert_type",
	"status", "analyst_assigned", "resolution_notes", "resolved_timestamp",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func sampleTxn(id string) domain.Transaction {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return domain.Transaction{
		TransactionID:             id,
		SenderPhone:               "254700000001",
		ReceiverPhone:             "254700000002",
		TransactionType:           string(domain.TypeP2PTransfer),
		Amount:                    decimal.RequireFromString("150.50"),
		Fee:                       decimal.RequireFromString("5"),
		TransactionDate:           at,
		DatePartDate:              "2024-01-01",
		Year:                      2024,
		Month:                     1,
		HourOfDay:                 10,
		Location:                  "Nairobi",
		Currency:                  "KES",
		Status:                    string(domain.StatusCompleted),
		FraudRiskScore:            85,
		FraudCategory:             domain.FraudHighRisk,
		SenderRegion:              "Central Kenya",
		ReceiverRegion:            "Central Kenya",
		TransactionVolumeCategory: domain.VolumeSmall,
	}
}

func TestInsertTransformed_CountsInsertedRows(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transformed_transactions")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transformed_transactions")).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	n, err := repo.InsertTransformed(context.Background(), []domain.Transaction{sampleTxn("T1"), sampleTxn("T2")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTransformed_ExecErrorRollsBack(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transformed_transactions")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.InsertTransformed(context.Background(), []domain.Transaction{sampleTxn("T1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.InsertTransformed")
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRaw_EmptyIsNoop(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepo(mock)

	n, err := repo.InsertRaw(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRaw_BeginError(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepo(mock)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := repo.InsertRaw(context.Background(), []domain.RawTransaction{{TransactionID: "T1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool exhausted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDailySummary(t *testing.T) {
	mock := newMock(t)
	repo := NewSummaryRepo(mock)

	rows := pgxmock.NewRows(summaryCols).AddRow(
		"2024-01-01", 3,
		decimal.RequireFromString("450.50"), decimal.RequireFromString("15"),
		decimal.RequireFromString("150.17"), decimal.RequireFromString("300"),
		2, 1, 2, 1,
	)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO daily_transaction_summary")).
		WithArgs(domain.HighRiskThreshold, "2024-01-01").
		WillReturnRows(rows)

	s, err := repo.UpsertDailySummary(context.Background(), "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", s.SummaryDate)
	assert.Equal(t, 3, s.TotalTransactions)
	assert.True(t, s.TotalAmount.Equal(decimal.RequireFromString("450.5")))
	assert.True(t, s.AvgTransactionAmount.Equal(decimal.RequireFromString("150.17")))
	assert.Equal(t, 1, s.FraudAttempts)
	assert.Equal(t, 1, s.FailedTransactions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDailySummary_NoRowsIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewSummaryRepo(mock)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO daily_transaction_summary")).
		WithArgs(domain.HighRiskThreshold, "2030-01-01").
		WillReturnRows(pgxmock.NewRows(summaryCols))

	_, err := repo.UpsertDailySummary(context.Background(), "2030-01-01")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFraudAlerts_ReturnsSorted(t *testing.T) {
	mock := newMock(t)
	repo := NewAlertRepo(mock)

	early := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(alertCols).
		AddRow(int64(2), "T2", late, int64(90), "High Risk", "OPEN", nil, nil, nil).
		AddRow(int64(1), "T1", early, int64(75), "High Risk", "OPEN", nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO fraud_alerts")).
		WithArgs(domain.HighRiskThreshold).
		WillReturnRows(rows)

	alerts, err := repo.CreateFraudAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "T1", alerts[0].TransactionID)
	assert.Equal(t, "T2", alerts[1].TransactionID)
	assert.Equal(t, domain.AlertOpen, alerts[0].Status)
	assert.Nil(t, alerts[0].ResolvedTimestamp)
	assert.Empty(t, alerts[0].AnalystAssigned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFraudAlerts_QueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewAlertRepo(mock)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO fraud_alerts")).
		WillReturnError(errors.New("deadlock detected"))

	_, err := repo.CreateFraudAlerts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.CreateFraudAlerts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAlerts_NumbersPlaceholders(t *testing.T) {
	mock := newMock(t)
	repo := NewAlertRepo(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM fraud_alerts WHERE status = $1 AND risk_score >= $2")).
		WithArgs("OPEN", int64(80)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $3 OFFSET $4")).
		WithArgs("OPEN", int64(80), 10, 10).
		WillReturnRows(pgxmock.NewRows(alertCols).
			AddRow(int64(1), "T1", time.Now(), int64(95), "High Risk", "OPEN", nil, nil, nil))

	alerts, total, err := repo.List(context.Background(), repository.AlertFilter{
		Status: "OPEN", MinScore: 80, Page: 2, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, int64(95), alerts[0].RiskScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSummaries_DefaultPage(t *testing.T) {
	mock := newMock(t)
	repo := NewSummaryRepo(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM daily_transaction_summary WHERE summary_date >= $1::date")).
		WithArgs("2024-01-01").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2 OFFSET $3")).
		WithArgs("2024-01-01", 50, 0).
		WillReturnRows(pgxmock.NewRows(summaryCols))

	summaries, total, err := repo.List(context.Background(), repository.SummaryFilter{From: "2024-01-01"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, summaries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByDate_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewSummaryRepo(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM daily_transaction_summary")).
		WithArgs("2024-02-01").
		WillReturnRows(pgxmock.NewRows(summaryCols))

	_, err := repo.GetByDate(context.Background(), "2024-02-01")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepo(mock)

	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM transformed_transactions WHERE transaction_id = $1")).
		WithArgs("T1").
		WillReturnRows(pgxmock.NewRows(domain.CanonicalColumns).AddRow(
			"T1", "254700000001", "254700000002", "P2P_TRANSFER",
			decimal.RequireFromString("150.50"), decimal.RequireFromString("5"), at, "2024-01-01",
			2024, 1, 0, 10, "Nairobi", "KES", "COMPLETED",
			int64(85), "High Risk", "", "REF1", "APP", "Transfer",
			"Central Kenya", "Central Kenya", "Small", 0, nil,
		))

	tx, err := repo.GetByID(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "T1", tx.TransactionID)
	assert.Equal(t, domain.FraudHighRisk, tx.FraudCategory)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("150.5")))
	assert.Nil(t, tx.TimeSincePrevTransaction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepo(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transformed_transactions WHERE transaction_id = $1")).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(domain.CanonicalColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountLoadedSince(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepo(mock)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE load_timestamp >= $1")).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))

	n, err := repo.CountLoadedSince(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWhereBuilder(t *testing.T) {
	var w where
	assert.Empty(t, w.String())

	w.add("status = ?", "FAILED")
	w.raw("is_suspicious_velocity = 1")
	w.add("transaction_date >= ?", "x")
	assert.Equal(t, " WHERE status = $1 AND is_suspicious_velocity = 1 AND transaction_date >= $2", w.String())
	assert.Equal(t, " LIMIT $3 OFFSET $4", w.page(3, 20))
	assert.Equal(t, []any{"FAILED", "x", 20, 40}, w.args)
}

func TestRunMigrations_EmptyURL(t *testing.T) {
	assert.Error(t, RunMigrations(""))
}

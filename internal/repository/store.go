package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

// TransactionStore persists raw and canonical transactions.
type TransactionStore interface {
	InsertRaw(ctx context.Context, rows []domain.RawTransaction) (int, error)
	InsertTransformed(ctx context.Context, txns []domain.Transaction) (int, error)
	List(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int, error)
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	CountLoadedSince(ctx context.Context, since time.Time) (int, error)
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
	GetVolumeByRegion(ctx context.Context) ([]RegionVolume, error)
}

// SummaryStore maintains the per-day aggregates.
type SummaryStore interface {
	UpsertDailySummary(ctx context.Context, date string) (*domain.DailySummary, error)
	GetByDate(ctx context.Context, date string) (*domain.DailySummary, error)
	List(ctx context.Context, f SummaryFilter) ([]domain.DailySummary, int, error)
}

// AlertStore maintains fraud alerts.
type AlertStore interface {
	CreateFraudAlerts(ctx context.Context) ([]domain.FraudAlert, error)
	List(ctx context.Context, f AlertFilter) ([]domain.FraudAlert, int, error)
}

// Stores groups the repositories of one backend.
type Stores struct {
	Transactions TransactionStore
	Summaries    SummaryStore
	Alerts       AlertStore
	Ping         func(ctx context.Context) error
	Close        func() error
}

// OpenSQLite opens the SQLite backend at path.
func OpenSQLite(path string) (*Stores, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Transactions: NewTransactionRepo(db),
		Summaries:    NewSummaryRepo(db),
		Alerts:       NewAlertRepo(db),
		Ping:         db.PingContext,
		Close:        db.Close,
	}, nil
}

type TransactionFilter struct {
	Status          string
	TransactionType string
	Region          string
	FraudCategory   string
	Sender          string
	SuspiciousOnly  bool
	From            *time.Time
	To              *time.Time
	Page            int
	Limit           int
}

type SummaryFilter struct {
	From  string
	To    string
	Page  int
	Limit int
}

type AlertFilter struct {
	Status   string
	MinScore int64
	Page     int
	Limit    int
}

// DashboardStats holds aggregate statistics over the canonical table.
type DashboardStats struct {
	TotalTransactions   int             `json:"total_transactions"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	TotalFees           decimal.Decimal `json:"total_fees"`
	UniqueUsers         int             `json:"unique_users"`
	Successful          int             `json:"successful_transactions"`
	Failed              int             `json:"failed_transactions"`
	HighRisk            int             `json:"high_risk_transactions"`
	SuspiciousVelocity  int             `json:"suspicious_velocity"`
	OpenAlerts          int             `json:"open_alerts"`
	FirstTransactionDay string          `json:"first_transaction_day,omitempty"`
	LastTransactionDay  string          `json:"last_transaction_day,omitempty"`
}

type RegionVolume struct {
	Region       string          `json:"region"`
	Transactions int             `json:"transactions"`
	Amount       decimal.Decimal `json:"amount"`
}

// Pagination applies the defaults shared by all list queries and returns the
// limit and offset.
func Pagination(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// storedTimeLayout keeps nanoseconds at a fixed width so stored values still
// sort as strings.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := domain.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored timestamp: %w", err)
	}
	return t, nil
}

func nullString(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}

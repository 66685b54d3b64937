package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

const alertColumns = `alert_id, transaction_id, alert_timestamp, risk_score, alert_type,
	status, analyst_assigned, resolution_notes, resolved_timestamp`

type AlertRepo struct {
	db *sql.DB
}

func NewAlertRepo(db *sql.DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// CreateFraudAlerts raises an OPEN alert for every completed canonical
// transaction scoring above the high-risk threshold that has no alert yet, and
// returns only the alerts created by this call.
func (r *AlertRepo) CreateFraudAlerts(ctx context.Context) ([]domain.FraudAlert, error) {
	rows, err := r.db.QueryContext(ctx, `
		INSERT INTO fraud_alerts (transaction_id, alert_timestamp, risk_score, alert_type)
		SELECT transaction_id, transaction_date, fraud_risk_score, fraud_category
		FROM transformed_transactions
		WHERE fraud_risk_score > ? AND status = 'COMPLETED'
		ON CONFLICT(transaction_id) DO NOTHING
		RETURNING `+alertColumns,
		domain.HighRiskThreshold,
	)
	if err != nil {
		return nil, fmt.Errorf("create fraud alerts: %w", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, fmt.Errorf("create fraud alerts: %w", err)
	}
	SortAlerts(alerts)
	return alerts, nil
}

// SortAlerts orders alerts by timestamp, then transaction_id.
func SortAlerts(alerts []domain.FraudAlert) {
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].AlertTimestamp.Equal(alerts[j].AlertTimestamp) {
			return alerts[i].AlertTimestamp.Before(alerts[j].AlertTimestamp)
		}
		return alerts[i].TransactionID < alerts[j].TransactionID
	})
}

func (r *AlertRepo) List(ctx context.Context, f AlertFilter) ([]domain.FraudAlert, int, error) {
	where, args := buildAlertWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fraud_alerts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	limit, offset := Pagination(f.Page, f.Limit)
	q := "SELECT " + alertColumns + " FROM fraud_alerts" + where +
		" ORDER BY risk_score DESC, alert_timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	return alerts, total, err
}

func buildAlertWhere(f AlertFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.MinScore > 0 {
		clauses = append(clauses, "risk_score >= ?")
		args = append(args, f.MinScore)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanAlerts(rows *sql.Rows) ([]domain.FraudAlert, error) {
	alerts := []domain.FraudAlert{}
	for rows.Next() {
		var a domain.FraudAlert
		var ts, status string
		var analyst, notes, resolved sql.NullString

		if err := rows.Scan(&a.ID, &a.TransactionID, &ts, &a.RiskScore, &a.AlertType,
			&status, &analyst, &notes, &resolved); err != nil {
			return nil, err
		}

		var err error
		if a.AlertTimestamp, err = parseStoredTime(ts); err != nil {
			return nil, err
		}
		a.Status = domain.AlertStatus(status)
		a.AnalystAssigned = nullString(analyst)
		a.ResolutionNotes = nullString(notes)
		if resolved.Valid {
			t, err := parseStoredTime(resolved.String)
			if err != nil {
				return nil, err
			}
			a.ResolvedTimestamp = &t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

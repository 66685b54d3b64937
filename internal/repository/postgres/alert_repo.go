package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wakala/mpesa-analytics/internal/domain"
	"github.com/wakala/mpesa-analytics/internal/repository"
)

type AlertRepo struct {
	db DBTX
}

func NewAlertRepo(db DBTX) *AlertRepo {
	return &AlertRepo{db: db}
}

func (r *AlertRepo) CreateFraudAlerts(ctx context.Context) ([]domain.FraudAlert, error) {
	const op = "postgres.CreateFraudAlerts"

	rows, err := r.db.Query(ctx, CreateFraudAlertsQuery, domain.HighRiskThreshold)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	repository.SortAlerts(alerts)
	return alerts, nil
}

func (r *AlertRepo) List(ctx context.Context, f repository.AlertFilter) ([]domain.FraudAlert, int, error) {
	const op = "postgres.ListAlerts"

	var w where
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.MinScore > 0 {
		w.add("risk_score >= ?", f.MinScore)
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM fraud_alerts"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	q := "SELECT " + alertColumns + " FROM fraud_alerts" + w.String() +
		" ORDER BY risk_score DESC, alert_timestamp DESC" + w.page(f.Page, f.Limit)

	rows, err := r.db.Query(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return alerts, total, nil
}

func scanAlerts(rows pgx.Rows) ([]domain.FraudAlert, error) {
	alerts := []domain.FraudAlert{}
	for rows.Next() {
		var a domain.FraudAlert
		var status string
		var analyst, notes *string

		if err := rows.Scan(&a.ID, &a.TransactionID, &a.AlertTimestamp, &a.RiskScore,
			&a.AlertType, &status, &analyst, &notes, &a.ResolvedTimestamp); err != nil {
			return nil, err
		}

		a.Status = domain.AlertStatus(status)
		if analyst != nil {
			a.AnalystAssigned = *analyst
		}
		if notes != nil {
			a.ResolutionNotes = *notes
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

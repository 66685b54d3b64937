package domain

import "time"

type AlertStatus string

const (
	AlertOpen     AlertStatus = "OPEN"
	AlertResolved AlertStatus = "RESOLVED"
)

// FraudAlert is raised once per completed high-risk transaction.
type FraudAlert struct {
	ID                int64       `json:"id"`
	TransactionID     string      `json:"transaction_id"`
	AlertTimestamp    time.Time   `json:"alert_timestamp"`
	RiskScore         int64       `json:"risk_score"`
	AlertType         string      `json:"alert_type"`
	Status            AlertStatus `json:"status"`
	AnalystAssigned   string      `json:"analyst_assigned,omitempty"`
	ResolutionNotes   string      `json:"resolution_notes,omitempty"`
	ResolvedTimestamp *time.Time  `json:"resolved_timestamp,omitempty"`
}

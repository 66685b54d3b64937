package domain

import "github.com/shopspring/decimal"

// DailySummary is the per-calendar-day aggregate of transformed transactions.
type DailySummary struct {
	SummaryDate            string          `json:"summary_date"`
	TotalTransactions      int             `json:"total_transactions"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	TotalFees              decimal.Decimal `json:"total_fees"`
	AvgTransactionAmount   decimal.Decimal `json:"avg_transaction_amount"`
	MaxTransactionAmount   decimal.Decimal `json:"max_transaction_amount"`
	UniqueUsers            int             `json:"unique_users"`
	FraudAttempts          int             `json:"fraud_attempts"`
	SuccessfulTransactions int             `json:"successful_transactions"`
	FailedTransactions     int             `json:"failed_transactions"`
}

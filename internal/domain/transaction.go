package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

type TransactionType string

const (
	TypeP2PTransfer     TransactionType = "P2P_TRANSFER"
	TypeMerchantPayment TransactionType = "MERCHANT_PAYMENT"
	TypeBillPayment     TransactionType = "BILL_PAYMENT"
	TypeAirtimeTopup    TransactionType = "AIRTIME_TOPUP"
	TypeWithdrawal      TransactionType = "WITHDRAWAL"
	TypeDeposit         TransactionType = "DEPOSIT"
)

type VolumeCategory string

const (
	VolumeVerySmall VolumeCategory = "Very Small"
	VolumeSmall     VolumeCategory = "Small"
	VolumeMedium    VolumeCategory = "Medium"
	VolumeLarge     VolumeCategory = "Large"
	VolumeVeryLarge VolumeCategory = "Very Large"
)

type FraudCategory string

const (
	FraudLowRisk    FraudCategory = "Low Risk"
	FraudMediumRisk FraudCategory = "Medium Risk"
	FraudHighRisk   FraudCategory = "High Risk"
)

// HighRiskThreshold is the fraud_risk_score above which a transaction counts
// as a fraud attempt and, when completed, raises an alert.
const HighRiskThreshold = 70

// DateLayout is the calendar-day format used for date_part_date and summary dates.
const DateLayout = "2006-01-02"

// RawTransaction is one row as supplied by the extractor. Every field except
// TransactionID may be missing; TransactionDate is kept as received.
type RawTransaction struct {
	TransactionID   string              `json:"transaction_id"`
	SenderPhone     *string             `json:"sender_phone"`
	ReceiverPhone   *string             `json:"receiver_phone"`
	TransactionType *string             `json:"transaction_type"`
	Amount          decimal.NullDecimal `json:"amount"`
	Fee             decimal.NullDecimal `json:"fee"`
	TransactionDate *string             `json:"transaction_date"`
	Location        *string             `json:"location"`
	Currency        *string             `json:"currency"`
	Status          *string             `json:"status"`
	FraudRiskScore  *int64              `json:"fraud_risk_score"`
	MerchantID      *string             `json:"merchant_id"`
	ReferenceNumber *string             `json:"reference_number"`
	Channel         *string             `json:"channel"`
	Category        *string             `json:"category"`
}

// Text returns a pointer to the text field backing col, or nil when col is not
// a text column. The transaction_id column is not addressable through Text.
func (r *RawTransaction) Text(col string) **string {
	switch col {
	case ColSenderPhone:
		return &r.SenderPhone
	case ColReceiverPhone:
		return &r.ReceiverPhone
	case ColTransactionType:
		return &r.TransactionType
	case ColTransactionDate:
		return &r.TransactionDate
	case ColLocation:
		return &r.Location
	case ColCurrency:
		return &r.Currency
	case ColStatus:
		return &r.Status
	case ColMerchantID:
		return &r.MerchantID
	case ColReferenceNumber:
		return &r.ReferenceNumber
	case ColChannel:
		return &r.Channel
	case ColCategory:
		return &r.Category
	}
	return nil
}

// Transaction is the canonical, cleaned and enriched record.
type Transaction struct {
	TransactionID             string          `json:"transaction_id"`
	SenderPhone               string          `json:"sender_phone"`
	ReceiverPhone             string          `json:"receiver_phone"`
	TransactionType           string          `json:"transaction_type"`
	Amount                    decimal.Decimal `json:"amount"`
	Fee                       decimal.Decimal `json:"fee"`
	TransactionDate           time.Time       `json:"transaction_date"`
	DatePartDate              string          `json:"date_part_date"`
	Year                      int             `json:"year"`
	Month                     int             `json:"month"`
	DayOfWeek                 int             `json:"day_of_week"`
	HourOfDay                 int             `json:"hour_of_day"`
	Location                  string          `json:"location"`
	Currency                  string          `json:"currency"`
	Status                    string          `json:"status"`
	FraudRiskScore            int64           `json:"fraud_risk_score"`
	FraudCategory             FraudCategory   `json:"fraud_category"`
	MerchantID                string          `json:"merchant_id"`
	ReferenceNumber           string          `json:"reference_number"`
	Channel                   string          `json:"channel"`
	Category                  string          `json:"category"`
	SenderRegion              string          `json:"sender_region"`
	ReceiverRegion            string          `json:"receiver_region"`
	TransactionVolumeCategory VolumeCategory  `json:"transaction_volume_category"`
	IsSuspiciousVelocity      int             `json:"is_suspicious_velocity"`
	TimeSincePrevTransaction  *float64        `json:"time_since_prev_transaction"`

	// IsWeekend is derived alongside the calendar fields but is not persisted.
	IsWeekend int `json:"is_weekend"`
}

// Raw converts a canonical record back into the raw shape, so that a stored
// batch can be fed through the transform again.
func (t *Transaction) Raw() RawTransaction {
	date := t.TransactionDate.Format(time.RFC3339Nano)
	score := t.FraudRiskScore
	return RawTransaction{
		TransactionID:   t.TransactionID,
		SenderPhone:     strPtr(t.SenderPhone),
		ReceiverPhone:   strPtr(t.ReceiverPhone),
		TransactionType: strPtr(t.TransactionType),
		Amount:          decimal.NewNullDecimal(t.Amount),
		Fee:             decimal.NewNullDecimal(t.Fee),
		TransactionDate: &date,
		Location:        strPtr(t.Location),
		Currency:        strPtr(t.Currency),
		Status:          strPtr(t.Status),
		FraudRiskScore:  &score,
		MerchantID:      strPtr(t.MerchantID),
		ReferenceNumber: strPtr(t.ReferenceNumber),
		Channel:         strPtr(t.Channel),
		Category:        strPtr(t.Category),
	}
}

func strPtr(s string) *string { return &s }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	DateLayout,
}

// ParseTimestamp parses the timestamp formats seen in source extracts and in
// stored rows. Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

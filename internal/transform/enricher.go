package transform

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

// OtherRegion is assigned to locations outside the region table.
const OtherRegion = "Other Region"

// suspiciousGap is the velocity threshold between a sender's transactions.
const suspiciousGap = 5 * time.Minute

var kenyanRegions = map[string]string{
	"Nairobi": "Central Kenya",
	"Thika":   "Central Kenya",
	"Mombasa": "Coastal Kenya",
	"Malindi": "Coastal Kenya",
	"Kisumu":  "Western Kenya",
	"Kisii":   "Western Kenya",
	"Nakuru":  "Rift Valley",
	"Eldoret": "Rift Valley",
	"Kitale":  "Rift Valley",
	"Garissa": "North Eastern",
}

// Upper bounds of the amount buckets; each bucket is right-closed and the
// first one also holds zero.
var volumeBounds = []struct {
	upper    decimal.Decimal
	category domain.VolumeCategory
}{
	{decimal.NewFromInt(100), domain.VolumeVerySmall},
	{decimal.NewFromInt(500), domain.VolumeSmall},
	{decimal.NewFromInt(2000), domain.VolumeMedium},
	{decimal.NewFromInt(10000), domain.VolumeLarge},
}

// RegionFor maps a location to its region.
func RegionFor(location string) string {
	if r, ok := kenyanRegions[location]; ok {
		return r
	}
	return OtherRegion
}

// VolumeCategoryFor buckets an amount: [0,100] (100,500] (500,2000] (2000,10000] (10000,inf).
func VolumeCategoryFor(amount decimal.Decimal) domain.VolumeCategory {
	for _, b := range volumeBounds {
		if amount.LessThanOrEqual(b.upper) {
			return b.category
		}
	}
	return domain.VolumeVeryLarge
}

// FraudCategoryFor buckets a clamped score: [0,30] (30,70] (70,100].
func FraudCategoryFor(score int64) domain.FraudCategory {
	switch {
	case score <= 30:
		return domain.FraudLowRisk
	case score <= domain.HighRiskThreshold:
		return domain.FraudMediumRisk
	default:
		return domain.FraudHighRisk
	}
}

// Enrich derives calendar, bucket, region and velocity fields. The result is
// ordered by (sender_phone, transaction_date); rows with the same sender and
// timestamp keep their batch order.
func Enrich(recs []Cleaned) []domain.Transaction {
	type keyed struct {
		tx    domain.Transaction
		known bool
	}
	rows := make([]keyed, 0, len(recs))
	for i := range recs {
		rows = append(rows, keyed{tx: canonical(&recs[i]), known: recs[i].Row.SenderPhone != nil})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i].tx, &rows[j].tx
		if a.SenderPhone != b.SenderPhone {
			return a.SenderPhone < b.SenderPhone
		}
		return a.TransactionDate.Before(b.TransactionDate)
	})

	out := make([]domain.Transaction, len(rows))
	for i := range rows {
		out[i] = rows[i].tx
		// Rows without a sender have no previous transaction.
		if i == 0 || !rows[i].known || !rows[i-1].known || out[i-1].SenderPhone != out[i].SenderPhone {
			continue
		}
		gap := out[i].TransactionDate.Sub(out[i-1].TransactionDate)
		minutes := gap.Minutes()
		out[i].TimeSincePrevTransaction = &minutes
		if gap < suspiciousGap {
			out[i].IsSuspiciousVelocity = 1
		}
	}

	return out
}

func canonical(c *Cleaned) domain.Transaction {
	r := &c.Row
	t := c.Date

	tx := domain.Transaction{
		TransactionID:   r.TransactionID,
		SenderPhone:     deref(r.SenderPhone),
		ReceiverPhone:   deref(r.ReceiverPhone),
		TransactionType: deref(r.TransactionType),
		Amount:          r.Amount.Decimal,
		Fee:             decimal.Zero,
		TransactionDate: t,
		DatePartDate:    t.Format(domain.DateLayout),
		Year:            t.Year(),
		Month:           int(t.Month()),
		DayOfWeek:       mondayFirst(t.Weekday()),
		HourOfDay:       t.Hour(),
		Location:        deref(r.Location),
		Currency:        deref(r.Currency),
		Status:          deref(r.Status),
		FraudRiskScore:  *r.FraudRiskScore,
		MerchantID:      deref(r.MerchantID),
		ReferenceNumber: deref(r.ReferenceNumber),
		Channel:         deref(r.Channel),
		Category:        deref(r.Category),
	}
	if r.Fee.Valid {
		tx.Fee = r.Fee.Decimal
	}
	if tx.DayOfWeek >= 5 {
		tx.IsWeekend = 1
	}

	tx.TransactionVolumeCategory = VolumeCategoryFor(tx.Amount)
	tx.FraudCategory = FraudCategoryFor(tx.FraudRiskScore)

	// Both regions come from the single location field.
	tx.SenderRegion = RegionFor(tx.Location)
	tx.ReceiverRegion = RegionFor(tx.Location)

	return tx
}

// mondayFirst converts Go's Sunday=0 weekday to Monday=0.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package transform

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

const (
	minRiskScore = 0
	maxRiskScore = 100
)

// CleanStats counts what each cleaning step removed or changed.
type CleanStats struct {
	InputRows       int `json:"input_rows"`
	DuplicateIDs    int `json:"duplicate_ids"`
	NegativeAmounts int `json:"negative_amounts"`
	InvalidDates    int `json:"invalid_dates"`
	ClampedScores   int `json:"clamped_scores"`
	OutputRows      int `json:"output_rows"`
}

// Dropped is the number of input rows that did not survive cleaning.
func (s CleanStats) Dropped() int {
	return s.InputRows - s.OutputRows
}

// Cleaned is a row that passed cleaning, with its coerced timestamp.
type Cleaned struct {
	Row  domain.RawTransaction
	Date time.Time
}

// Clean de-duplicates, imputes, filters and range-constrains a batch. The
// input batch is left untouched; rows keep their arrival order.
func Clean(b *domain.Batch) ([]Cleaned, CleanStats) {
	stats := CleanStats{InputRows: b.Len()}

	// 1. First occurrence of each transaction_id wins.
	rows := make([]domain.RawTransaction, 0, b.Len())
	seen := make(map[string]struct{}, b.Len())
	for _, r := range b.Rows {
		if _, dup := seen[r.TransactionID]; dup {
			stats.DuplicateIDs++
			continue
		}
		seen[r.TransactionID] = struct{}{}
		rows = append(rows, r)
	}

	// 2. Median fill for amount and fee.
	if m, ok := median(rows, func(r *domain.RawTransaction) *decimal.NullDecimal { return &r.Amount }); ok {
		for i := range rows {
			if !rows[i].Amount.Valid {
				rows[i].Amount = decimal.NewNullDecimal(m)
			}
		}
	}
	if m, ok := median(rows, func(r *domain.RawTransaction) *decimal.NullDecimal { return &r.Fee }); ok {
		for i := range rows {
			if !rows[i].Fee.Valid {
				rows[i].Fee = decimal.NewNullDecimal(m)
			}
		}
	}

	// 3. A missing risk score is never inferred from the batch.
	for i := range rows {
		if rows[i].FraudRiskScore == nil {
			zero := int64(0)
			rows[i].FraudRiskScore = &zero
		}
	}

	// 4. Mode fill for text columns other than the identifier.
	for _, f := range domain.InputSchema {
		if f.Kind != domain.KindText || f.Name == domain.ColTransactionID {
			continue
		}
		fillMode(rows, f.Name)
	}

	out := make([]Cleaned, 0, len(rows))
	for _, r := range rows {
		// 5. Negative (or still missing) amounts are invalid transactions.
		if !r.Amount.Valid || r.Amount.Decimal.IsNegative() {
			stats.NegativeAmounts++
			continue
		}

		// 6. Uniform timestamp.
		if r.TransactionDate == nil {
			stats.InvalidDates++
			continue
		}
		date, err := domain.ParseTimestamp(*r.TransactionDate)
		if err != nil {
			stats.InvalidDates++
			continue
		}

		// 7. Clamp into [0, 100].
		score := *r.FraudRiskScore
		if score < minRiskScore || score > maxRiskScore {
			score = min(max(score, minRiskScore), maxRiskScore)
			stats.ClampedScores++
		}
		r.FraudRiskScore = &score

		out = append(out, Cleaned{Row: r, Date: date})
	}

	stats.OutputRows = len(out)
	return out, stats
}

func median(rows []domain.RawTransaction, field func(*domain.RawTransaction) *decimal.NullDecimal) (decimal.Decimal, bool) {
	var vals []decimal.Decimal
	for i := range rows {
		if v := field(&rows[i]); v.Valid {
			vals = append(vals, v.Decimal)
		}
	}
	if len(vals) == 0 {
		return decimal.Decimal{}, false
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].LessThan(vals[j]) })

	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return vals[mid-1].Add(vals[mid]).Div(decimal.NewFromInt(2)), true
}

// fillMode replaces missing values of col with its most frequent value. Ties
// go to the lexicographically smallest value. A column with no values at all
// is left as is.
func fillMode(rows []domain.RawTransaction, col string) {
	counts := make(map[string]int)
	for i := range rows {
		if v := *rows[i].Text(col); v != nil {
			counts[*v]++
		}
	}
	if len(counts) == 0 {
		return
	}

	var best string
	bestCount := 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}

	for i := range rows {
		p := rows[i].Text(col)
		if *p == nil {
			v := best
			*p = &v
		}
	}
}

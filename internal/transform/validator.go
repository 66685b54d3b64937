package transform

import (
	"github.com/wakala/mpesa-analytics/internal/domain"
)

// ValidationReport is the informational summary logged before cleaning.
type ValidationReport struct {
	Rows            int               `json:"rows"`
	NullValues      map[string]int    `json:"null_values"`
	ColumnTypes     map[string]string `json:"dtypes"`
	DuplicateIDs    int               `json:"duplicate_ids"`
	NegativeAmounts int               `json:"negative_amounts"`
}

// Validate inspects a batch without changing it. Null counts only list present
// columns that have at least one missing value.
func Validate(b *domain.Batch) ValidationReport {
	report := ValidationReport{
		Rows:        b.Len(),
		NullValues:  make(map[string]int),
		ColumnTypes: make(map[string]string),
	}

	for _, col := range b.Columns() {
		nulls := 0
		for i := range b.Rows {
			if isNull(&b.Rows[i], col) {
				nulls++
			}
		}
		if nulls > 0 {
			report.NullValues[col] = nulls
		}
		report.ColumnTypes[col] = inferType(b, col)
	}

	seen := make(map[string]struct{}, b.Len())
	for i := range b.Rows {
		r := &b.Rows[i]
		if _, dup := seen[r.TransactionID]; dup {
			report.DuplicateIDs++
		} else {
			seen[r.TransactionID] = struct{}{}
		}
		if r.Amount.Valid && r.Amount.Decimal.IsNegative() {
			report.NegativeAmounts++
		}
	}

	return report
}

func isNull(r *domain.RawTransaction, col string) bool {
	switch col {
	case domain.ColTransactionID:
		return r.TransactionID == ""
	case domain.ColAmount:
		return !r.Amount.Valid
	case domain.ColFee:
		return !r.Fee.Valid
	case domain.ColFraudRiskScore:
		return r.FraudRiskScore == nil
	}
	if p := r.Text(col); p != nil {
		return *p == nil
	}
	return true
}

// inferType reports the declared kind, except that a timestamp column whose
// values do not all parse is reported as text.
func inferType(b *domain.Batch, col string) string {
	f, _ := domain.LookupField(col)
	if f.Kind != domain.KindTimestamp {
		return string(f.Kind)
	}
	for i := range b.Rows {
		v := b.Rows[i].TransactionDate
		if v == nil {
			continue
		}
		if _, err := domain.ParseTimestamp(*v); err != nil {
			return string(domain.KindText)
		}
	}
	return string(domain.KindTimestamp)
}

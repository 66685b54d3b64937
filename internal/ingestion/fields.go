package ingestion

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

// setField stores one source value on r. An empty value leaves the field
// missing; columns outside the input schema are ignored.
func setField(r *domain.RawTransaction, col, val string) error {
	val = strings.TrimSpace(val)

	switch col {
	case domain.ColTransactionID:
		r.TransactionID = val
		return nil
	}
	if val == "" {
		return nil
	}

	switch col {
	case domain.ColAmount, domain.ColFee:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return fmt.Errorf("%s: %w", col, err)
		}
		if col == domain.ColAmount {
			r.Amount = decimal.NewNullDecimal(d)
		} else {
			r.Fee = decimal.NewNullDecimal(d)
		}
	case domain.ColFraudRiskScore:
		// Exports written by dataframe tools carry integer columns with
		// missing values as floats ("45.0").
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", col, err)
		}
		score := int64(math.Round(f))
		r.FraudRiskScore = &score
	default:
		if p := r.Text(col); p != nil {
			v := val
			*p = &v
		}
	}
	return nil
}

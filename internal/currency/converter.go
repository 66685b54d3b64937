package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ratesPerUSD maps currency codes to local units per 1 USD.
// Approximate 2024 rates for East African corridors.
var ratesPerUSD = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"KES": decimal.RequireFromString("129.5"), // Kenyan Shilling
	"TZS": decimal.RequireFromString("2540"),  // Tanzanian Shilling
	"UGX": decimal.RequireFromString("3780"),  // Ugandan Shilling
}

// ToUSD converts a local amount to USD, rounded to cents.
func ToUSD(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, err := Rate(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.DivRound(rate, 2), nil
}

// FromUSD converts a USD amount to local currency.
func FromUSD(usdAmount decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, err := Rate(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return usdAmount.Mul(rate).Round(2), nil
}

// Rate returns units of currency per 1 USD.
func Rate(currency string) (decimal.Decimal, error) {
	rate, ok := ratesPerUSD[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("unsupported currency: %s", currency)
	}
	return rate, nil
}

package enums

import "fmt"

// Currency is the ISO-4217 code carried by every monetary amount.
type Currency string

const (
	CurrencyDKK Currency = "DKK"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// DefaultCurrency is assumed when an amount arrives without a currency.
const DefaultCurrency = CurrencyDKK

var validCurrencies = []Currency{CurrencyDKK, CurrencyEUR, CurrencyUSD}

// IsValid reports whether the value is a supported currency.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts raw input into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}

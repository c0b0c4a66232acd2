package constants

import "strings"

// Currency is an ISO 4217 code from the supported set.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	JPY Currency = "JPY"
	CHF Currency = "CHF"
	CNY Currency = "CNY"
)

// DefaultCurrency is assumed when detection finds nothing.
const DefaultCurrency = USD

// allCurrencies fixes the detection order; the first matching entry wins.
var allCurrencies = []Currency{USD, EUR, GBP, CAD, AUD, JPY, CHF, CNY}

func AllCurrencies() []Currency {
	out := make([]Currency, len(allCurrencies))
	copy(out, allCurrencies)
	return out
}

func CurrenciesAsStrings() []string {
	result := make([]string, len(allCurrencies))
	for i, c := range allCurrencies {
		result[i] = string(c)
	}
	return result
}

// IsSupportedCurrency reports whether code is in the supported set.
func IsSupportedCurrency(code string) bool {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	for _, cur := range allCurrencies {
		if c == cur {
			return true
		}
	}
	return false
}

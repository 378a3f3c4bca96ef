package normalize

import "strings"

// Static fallback rates to EUR, used when no live table is supplied.
var defaultEURRates = map[string]float64{
	"USD": 0.92,
	"EUR": 1.0,
	"GBP": 1.17,
	"ETH": 2800.0,
	"BTC": 58000.0,
}

// AmountToEUR converts an amount to EUR using the supplied rate table, falling
// back to the built-in defaults. Unknown currencies pass through at 1.0.
func AmountToEUR(amount float64, currency string, rates map[string]float64) float64 {
	if rates == nil {
		rates = defaultEURRates
	}

	rate, ok := rates[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok {
		rate = 1.0
	}
	return amount * rate
}

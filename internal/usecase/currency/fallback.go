package currency

import "github.com/shopspring/decimal"

// pivotCurrency is used to triangulate a pair missing from the fallback table.
const pivotCurrency = "USD"

// defaultFallbackRates are used only when no stored rate exists for a pair.
// XAF is pegged to EUR at 655.957.
var defaultFallbackRates = map[string]string{
	"EUR_USD": "1.08",
	"USD_EUR": "0.92",
	"EUR_XAF": "655.957",
	"XAF_EUR": "0.0015245",
	"USD_XAF": "605.00",
	"XAF_USD": "0.00165",
	"GBP_USD": "1.27",
	"USD_GBP": "0.79",
	"NGN_USD": "0.00065",
	"USD_NGN": "1530.00",
}

type FallbackTable struct {
	rates map[string]decimal.Decimal
}

func NewFallbackTable(rates map[string]string) *FallbackTable {
	table := &FallbackTable{rates: make(map[string]decimal.Decimal, len(rates))}
	for key, value := range rates {
		table.rates[key] = decimal.RequireFromString(value)
	}
	return table
}

func DefaultFallbackTable() *FallbackTable {
	return NewFallbackTable(defaultFallbackRates)
}

// Resolve returns the fallback rate for a pair and whether it was found directly
// or through the USD pivot. An unresolvable pair yields 1 and false.
func (t *FallbackTable) Resolve(from, to string) (decimal.Decimal, bool) {
	if rate, ok := t.rates[cacheKey(from, to)]; ok {
		return rate, true
	}
	if from != pivotCurrency && to != pivotCurrency {
		toPivot, ok1 := t.rates[cacheKey(from, pivotCurrency)]
		fromPivot, ok2 := t.rates[cacheKey(pivotCurrency, to)]
		if ok1 && ok2 {
			return toPivot.Mul(fromPivot), true
		}
	}
	return decimal.NewFromInt(1), false
}

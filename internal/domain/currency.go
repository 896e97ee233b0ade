package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyRate is directional: (EUR, USD) and (USD, EUR) are stored independently.
type CurrencyRate struct {
	BaseCurrency   string
	TargetCurrency string
	Rate           decimal.Decimal
	UpdatedAt      time.Time
}

type RateUpdate struct {
	From string
	To   string
	Rate decimal.Decimal
}

const (
	RateSourceAdmin   = "admin"
	RateSourceRefresh = "refresh"
)

type RateChange struct {
	ID             uint
	BaseCurrency   string
	TargetCurrency string
	OldRate        *decimal.Decimal
	NewRate        decimal.Decimal
	ChangedBy      string
	Source         string
	CreatedAt      time.Time
}

var minorUnits = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"NGN": 2,
	"GHS": 2,
	"KES": 2,
	"XAF": 0,
	"XOF": 0,
}

// MinorUnits returns the number of decimal places used by a currency, 2 when unknown.
func MinorUnits(code string) int32 {
	if units, ok := minorUnits[NormalizeCurrency(code)]; ok {
		return units
	}
	return 2
}

func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionProcessing TransactionStatus = "processing"
	TransactionSucceeded  TransactionStatus = "succeeded"
	TransactionFailed     TransactionStatus = "failed"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionSucceeded || s == TransactionFailed
}

// Transaction is one append-only audit ledger entry. Amounts holds the original
// amount converted into every supported currency at write time.
type Transaction struct {
	TransactionID    string
	IntentID         string
	Provider         string
	AmountOriginal   decimal.Decimal
	CurrencyOriginal string
	Amounts          map[string]decimal.Decimal
	Status           TransactionStatus
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

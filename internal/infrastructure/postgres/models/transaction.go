package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionModel struct {
	TransactionID    string          `gorm:"primaryKey;size:128"`
	IntentID         string          `gorm:"size:64;not null;index"`
	Provider         string          `gorm:"size:32;not null"`
	AmountOriginal   decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	CurrencyOriginal string          `gorm:"size:3;not null"`
	// Amounts maps currency code to a decimal string.
	Amounts      datatypes.JSON
	Status       string `gorm:"size:16;not null"`
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (TransactionModel) TableName() string { return "transactions" }

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentIntentModel struct {
	ID            string          `gorm:"primaryKey;size:64"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Currency      string          `gorm:"size:3;not null"`
	Status        string          `gorm:"size:16;not null;index:idx_payment_intents_status_expires,priority:1"`
	PaymentMethod string          `gorm:"size:32;not null;uniqueIndex:idx_payment_intents_provider_tx,priority:1"`
	OrderID       string          `gorm:"size:64;index"`
	CustomerID    string          `gorm:"size:64;index"`
	Metadata      datatypes.JSON
	// NULL until the provider hands back a reference; unique per provider.
	ProviderTransactionID *string `gorm:"size:128;uniqueIndex:idx_payment_intents_provider_tx,priority:2"`
	FailureReason         string
	CreatedAt             time.Time
	ExpiresAt             time.Time `gorm:"not null;index:idx_payment_intents_status_expires,priority:2"`
	UpdatedAt             time.Time
}

func (PaymentIntentModel) TableName() string { return "payment_intents" }

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CurrencyRateModel struct {
	BaseCurrency   string          `gorm:"primaryKey;size:3"`
	TargetCurrency string          `gorm:"primaryKey;size:3"`
	Rate           decimal.Decimal `gorm:"type:numeric(24,10);not null"`
	UpdatedAt      time.Time
}

func (CurrencyRateModel) TableName() string { return "currency_rates" }

type CurrencyRateHistoryModel struct {
	ID             uint                `gorm:"primaryKey;autoIncrement"`
	BaseCurrency   string              `gorm:"size:3;not null;index:idx_rate_history_pair,priority:1"`
	TargetCurrency string              `gorm:"size:3;not null;index:idx_rate_history_pair,priority:2"`
	OldRate        decimal.NullDecimal `gorm:"type:numeric(24,10)"`
	NewRate        decimal.Decimal     `gorm:"type:numeric(24,10);not null"`
	ChangedBy      string              `gorm:"size:128;not null"`
	Source         string              `gorm:"size:16;not null"`
	CreatedAt      time.Time
}

func (CurrencyRateHistoryModel) TableName() string { return "currency_rate_history" }

package mappers

import (
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/models"
)

func ToDomainRate(model *models.CurrencyRateModel) domain.CurrencyRate {
	return domain.CurrencyRate{
		BaseCurrency:   model.BaseCurrency,
		TargetCurrency: model.TargetCurrency,
		Rate:           model.Rate,
		UpdatedAt:      model.UpdatedAt,
	}
}

func ToDomainRateChange(model *models.CurrencyRateHistoryModel) domain.RateChange {
	change := domain.RateChange{
		ID:             model.ID,
		BaseCurrency:   model.BaseCurrency,
		TargetCurrency: model.TargetCurrency,
		NewRate:        model.NewRate,
		ChangedBy:      model.ChangedBy,
		Source:         model.Source,
		CreatedAt:      model.CreatedAt,
	}
	if model.OldRate.Valid {
		old := model.OldRate.Decimal
		change.OldRate = &old
	}
	return change
}

func ToGORMWebhookEvent(record *domain.WebhookEventRecord) *models.WebhookEventModel {
	return &models.WebhookEventModel{
		ID:             record.ID,
		Provider:       record.Provider,
		EventID:        record.EventID,
		IntentID:       record.IntentID,
		TransactionID:  record.TransactionID,
		ReportedStatus: record.ReportedStatus,
		Outcome:        string(record.Outcome),
		ReceivedAt:     record.ReceivedAt,
	}
}

func ToDomainWebhookEvent(model *models.WebhookEventModel) *domain.WebhookEventRecord {
	return &domain.WebhookEventRecord{
		ID:             model.ID,
		Provider:       model.Provider,
		EventID:        model.EventID,
		IntentID:       model.IntentID,
		TransactionID:  model.TransactionID,
		ReportedStatus: model.ReportedStatus,
		Outcome:        domain.WebhookOutcome(model.Outcome),
		ReceivedAt:     model.ReceivedAt,
	}
}

package mappers

import (
	"encoding/json"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func ToGORMIntent(intent *domain.PaymentIntent) (*models.PaymentIntentModel, error) {
	metadata, err := json.Marshal(intent.Metadata)
	if err != nil {
		return nil, err
	}
	model := &models.PaymentIntentModel{
		ID:            intent.ID,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Status:        string(intent.Status),
		PaymentMethod: intent.PaymentMethod,
		OrderID:       intent.OrderID,
		CustomerID:    intent.CustomerID,
		Metadata:      datatypes.JSON(metadata),
		FailureReason: intent.FailureReason,
		CreatedAt:     intent.CreatedAt,
		ExpiresAt:     intent.ExpiresAt,
		UpdatedAt:     intent.UpdatedAt,
	}
	if intent.ProviderTransactionID != "" {
		txID := intent.ProviderTransactionID
		model.ProviderTransactionID = &txID
	}
	return model, nil
}

func ToDomainIntent(model *models.PaymentIntentModel) (*domain.PaymentIntent, error) {
	intent := &domain.PaymentIntent{
		ID:            model.ID,
		Amount:        model.Amount,
		Currency:      model.Currency,
		Status:        domain.IntentStatus(model.Status),
		PaymentMethod: model.PaymentMethod,
		OrderID:       model.OrderID,
		CustomerID:    model.CustomerID,
		FailureReason: model.FailureReason,
		CreatedAt:     model.CreatedAt,
		ExpiresAt:     model.ExpiresAt,
		UpdatedAt:     model.UpdatedAt,
	}
	if model.ProviderTransactionID != nil {
		intent.ProviderTransactionID = *model.ProviderTransactionID
	}
	if len(model.Metadata) > 0 && string(model.Metadata) != "null" {
		if err := json.Unmarshal(model.Metadata, &intent.Metadata); err != nil {
			return nil, err
		}
	}
	return intent, nil
}

func ToGORMTransaction(tx *domain.Transaction) (*models.TransactionModel, error) {
	amounts := make(map[string]string, len(tx.Amounts))
	for code, amount := range tx.Amounts {
		amounts[code] = amount.String()
	}
	encoded, err := json.Marshal(amounts)
	if err != nil {
		return nil, err
	}
	return &models.TransactionModel{
		TransactionID:    tx.TransactionID,
		IntentID:         tx.IntentID,
		Provider:         tx.Provider,
		AmountOriginal:   tx.AmountOriginal,
		CurrencyOriginal: tx.CurrencyOriginal,
		Amounts:          datatypes.JSON(encoded),
		Status:           string(tx.Status),
		ErrorMessage:     tx.ErrorMessage,
		CreatedAt:        tx.CreatedAt,
		UpdatedAt:        tx.UpdatedAt,
	}, nil
}

func ToDomainTransaction(model *models.TransactionModel) (*domain.Transaction, error) {
	var raw map[string]string
	if len(model.Amounts) > 0 {
		if err := json.Unmarshal(model.Amounts, &raw); err != nil {
			return nil, err
		}
	}
	amounts := make(map[string]decimal.Decimal, len(raw))
	for code, value := range raw {
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return nil, err
		}
		amounts[code] = amount
	}
	return &domain.Transaction{
		TransactionID:    model.TransactionID,
		IntentID:         model.IntentID,
		Provider:         model.Provider,
		AmountOriginal:   model.AmountOriginal,
		CurrencyOriginal: model.CurrencyOriginal,
		Amounts:          amounts,
		Status:           domain.TransactionStatus(model.Status),
		ErrorMessage:     model.ErrorMessage,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}, nil
}

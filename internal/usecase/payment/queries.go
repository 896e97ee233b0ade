package payment

import (
	"context"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

func (uc *DefaultPaymentUsecase) GetIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	return uc.Intents.GetByID(ctx, intentID)
}

func (uc *DefaultPaymentUsecase) ListTransactions(ctx context.Context, intentID string) ([]*domain.Transaction, error) {
	if _, err := uc.Intents.GetByID(ctx, intentID); err != nil {
		return nil, err
	}
	return uc.Ledger.ListByIntent(ctx, intentID)
}

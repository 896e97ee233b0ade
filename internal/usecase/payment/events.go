package payment

import (
	"context"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

// publish is best effort: the intent is already committed, so a broker outage
// is logged and does not fail the caller.
func (uc *DefaultPaymentUsecase) publish(ctx context.Context, intent *domain.PaymentIntent, eventType, transactionID string) {
	if uc.Publisher == nil {
		return
	}

	event := domain.PaymentEvent{
		Type:          eventType,
		IntentID:      intent.ID,
		OrderID:       intent.OrderID,
		CustomerID:    intent.CustomerID,
		Status:        string(intent.Status),
		Amount:        intent.Amount.String(),
		Currency:      intent.Currency,
		PaymentMethod: intent.PaymentMethod,
		TransactionID: transactionID,
		Reason:        intent.FailureReason,
		OccurredAt:    uc.now().UTC(),
	}
	if err := uc.Publisher.PublishPayment(ctx, event); err != nil {
		uc.logger.Error("failed to publish payment event", "type", eventType, "intent_id", intent.ID, "error", err)
	}
}

package payment

import (
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

func (uc *DefaultPaymentUsecase) recordIntentCreatedMetrics(intent *domain.PaymentIntent) {
	if uc.Metrics == nil {
		return
	}
	amount, _ := intent.Amount.Float64()
	uc.Metrics.RecordIntentCreated(intent.PaymentMethod, intent.Currency, amount)
}

func (uc *DefaultPaymentUsecase) recordTransitionMetrics(paymentMethod string, from, to domain.IntentStatus) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordTransition(paymentMethod, string(from), string(to))
}

func (uc *DefaultPaymentUsecase) recordChargeMetrics(provider string, outcome domain.ChargeOutcome, elapsed time.Duration) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordCharge(provider, string(outcome), elapsed.Seconds())
}

func (uc *DefaultPaymentUsecase) recordWebhookMetrics(provider string, outcome domain.WebhookOutcome) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordWebhook(provider, string(outcome))
}

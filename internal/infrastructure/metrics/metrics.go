package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics holds every collector exported by the engine.
type PaymentMetrics struct {
	IntentsCreatedTotal       *prometheus.CounterVec
	IntentsCreatedAmountTotal *prometheus.CounterVec
	IntentTransitionsTotal    *prometheus.CounterVec

	ProviderChargeDuration *prometheus.HistogramVec
	ProviderChargeTotal    *prometheus.CounterVec

	WebhooksTotal                *prometheus.CounterVec
	WebhookSignatureFailureTotal *prometheus.CounterVec
	WebhookMalformedTotal        *prometheus.CounterVec

	CurrencyFallbackTotal *prometheus.CounterVec
	RateUpdatesTotal      *prometheus.CounterVec

	LedgerWriteErrorsTotal prometheus.Counter
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	f := promauto.With(reg)
	return &PaymentMetrics{
		IntentsCreatedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_intents_created_total",
				Help: "Number of payment intents created",
			},
			[]string{"payment_method", "currency"},
		),
		IntentsCreatedAmountTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_intents_created_amount_total",
				Help: "Sum of requested intent amounts in the intent currency",
			},
			[]string{"currency"},
		),
		IntentTransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_intent_transitions_total",
				Help: "Intent status transitions",
			},
			[]string{"payment_method", "from", "to"},
		),
		ProviderChargeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_provider_charge_duration_seconds",
				Help:    "Latency of provider charge calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		ProviderChargeTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_provider_charge_total",
				Help: "Provider charge calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		WebhooksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_webhooks_total",
				Help: "Accepted webhooks by outcome",
			},
			[]string{"provider", "outcome"},
		),
		WebhookSignatureFailureTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_webhook_signature_failures_total",
				Help: "Webhooks rejected because the signature did not verify",
			},
			[]string{"provider"},
		),
		WebhookMalformedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_webhook_malformed_total",
				Help: "Verified webhooks rejected because the payload could not be parsed",
			},
			[]string{"provider"},
		),
		CurrencyFallbackTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "currency_fallback_total",
				Help: "Conversions served from the hard-coded fallback table",
			},
			[]string{"from", "to"},
		),
		RateUpdatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "currency_rate_updates_total",
				Help: "Committed currency rate changes",
			},
			[]string{"source"},
		),
		LedgerWriteErrorsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "payment_ledger_write_errors_total",
				Help: "Ledger writes that failed after a committed status transition",
			},
		),
	}
}

// RecordIntentCreated counts a new intent and its requested amount.
func (m *PaymentMetrics) RecordIntentCreated(paymentMethod, currency string, amount float64) {
	m.IntentsCreatedTotal.WithLabelValues(paymentMethod, currency).Inc()
	m.IntentsCreatedAmountTotal.WithLabelValues(currency).Add(amount)
}

func (m *PaymentMetrics) RecordTransition(paymentMethod, from, to string) {
	m.IntentTransitionsTotal.WithLabelValues(paymentMethod, from, to).Inc()
}

func (m *PaymentMetrics) RecordCharge(provider, outcome string, durationSeconds float64) {
	m.ProviderChargeDuration.WithLabelValues(provider).Observe(durationSeconds)
	m.ProviderChargeTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *PaymentMetrics) RecordWebhook(provider, outcome string) {
	m.WebhooksTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *PaymentMetrics) RecordSignatureFailure(provider string) {
	m.WebhookSignatureFailureTotal.WithLabelValues(provider).Inc()
}

func (m *PaymentMetrics) RecordMalformedWebhook(provider string) {
	m.WebhookMalformedTotal.WithLabelValues(provider).Inc()
}

func (m *PaymentMetrics) RecordCurrencyFallback(from, to string) {
	m.CurrencyFallbackTotal.WithLabelValues(from, to).Inc()
}

func (m *PaymentMetrics) RecordRateUpdates(source string, count int) {
	m.RateUpdatesTotal.WithLabelValues(source).Add(float64(count))
}

func (m *PaymentMetrics) RecordLedgerWriteError() {
	m.LedgerWriteErrorsTotal.Inc()
}

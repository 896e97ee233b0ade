package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentData is the per-attempt input handed to a provider: a card token,
// an authorization code or a phone number depending on the provider.
type PaymentData map[string]string

func (d PaymentData) Get(key string) string {
	if d == nil {
		return ""
	}
	return d[key]
}

type ChargeOutcome string

const (
	ChargeSucceeded ChargeOutcome = "succeeded"
	ChargeFailed    ChargeOutcome = "failed"
	// ChargePending means the provider accepted the request and will settle it
	// asynchronously through a webhook.
	ChargePending ChargeOutcome = "pending"
)

type ChargeResult struct {
	Outcome       ChargeOutcome
	TransactionID string
	Reason        string
}

type WebhookEvent struct {
	Provider        string
	EventID         string
	TransactionID   string
	IntentReference string
	Status          TransactionStatus
	Reason          string
	Amount          decimal.Decimal
	Currency        string
}

// IsSettlement reports whether the event carries a terminal outcome.
func (e WebhookEvent) IsSettlement() bool {
	return e.Status.IsTerminal()
}

// PaymentProvider is implemented once per payment network. Implementations must
// not retry: retry policy belongs to the caller.
type PaymentProvider interface {
	Name() string
	Charge(ctx context.Context, intent *PaymentIntent, data PaymentData) (ChargeResult, error)
	SignatureHeader() string
	VerifySignature(signature string, payload []byte) error
	ParseWebhook(payload []byte) (WebhookEvent, error)
}

type ExchangeRateProvider interface {
	Name() string
	FetchRates(ctx context.Context, base string, targets []string) ([]RateUpdate, error)
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/webhook"
)

const (
	StripeName       = "stripe"
	stripeDefaultURL = "https://api.stripe.com"
)

// Stripe confirms a PaymentIntent server side. PaymentData key: "payment_method".
type Stripe struct {
	webhook.TimestampedScheme
	api       apiClient
	secretKey string
}

func NewStripe(cfg config.ProviderConfig) *Stripe {
	return &Stripe{
		TimestampedScheme: webhook.TimestampedScheme{
			Header:    "Stripe-Signature",
			Secret:    cfg.WebhookSecret,
			Tolerance: webhook.DefaultTimestampTolerance,
		},
		api:       newAPIClient(StripeName, cfg.BaseURL, stripeDefaultURL),
		secretKey: cfg.SecretKey,
	}
}

func (s *Stripe) Name() string { return StripeName }

type stripeError struct {
	Message     string `json:"message"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
}

type stripePaymentIntent struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *stripeError      `json:"last_payment_error"`
	Error            *stripeError      `json:"error"`
}

func (s *Stripe) Charge(ctx context.Context, intent *domain.PaymentIntent, data domain.PaymentData) (domain.ChargeResult, error) {
	method := data.Get("payment_method")
	if method == "" {
		return failed("missing payment method"), nil
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(toMinorUnits(intent.Amount, intent.Currency), 10))
	form.Set("currency", strings.ToLower(intent.Currency))
	form.Set("payment_method", method)
	form.Set("confirm", "true")
	form.Set("metadata[intent_id]", intent.ID)

	resp, err := s.api.do(ctx, http.MethodPost, "/v1/payment_intents", map[string]string{
		"Authorization":   "Bearer " + s.secretKey,
		"Content-Type":    "application/x-www-form-urlencoded",
		"Idempotency-Key": intent.ID,
	}, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.ChargeResult{}, err
	}

	var parsed stripePaymentIntent
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return domain.ChargeResult{}, fmt.Errorf("failed to parse stripe response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return failed(stripeReason(parsed.Error)), nil
	}

	switch parsed.Status {
	case "succeeded":
		return domain.ChargeResult{Outcome: domain.ChargeSucceeded, TransactionID: parsed.ID}, nil
	case "processing", "requires_action", "requires_capture":
		return domain.ChargeResult{Outcome: domain.ChargePending, TransactionID: parsed.ID}, nil
	default:
		return domain.ChargeResult{
			Outcome:       domain.ChargeFailed,
			TransactionID: parsed.ID,
			Reason:        stripeReason(parsed.LastPaymentError),
		}, nil
	}
}

func stripeReason(e *stripeError) string {
	if e == nil {
		return "charge declined"
	}
	return firstNonEmpty(e.DeclineCode, e.Code, e.Message, "charge declined")
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripePaymentIntent `json:"object"`
	} `json:"data"`
}

func (s *Stripe) ParseWebhook(payload []byte) (domain.WebhookEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if event.ID == "" || event.Type == "" || event.Data.Object.ID == "" {
		return domain.WebhookEvent{}, fmt.Errorf("%w: missing event id, type or object", domain.ErrMalformedPayload)
	}

	status := domain.TransactionProcessing
	reason := ""
	switch event.Type {
	case "payment_intent.succeeded":
		status = domain.TransactionSucceeded
	case "payment_intent.payment_failed", "payment_intent.canceled":
		status = domain.TransactionFailed
		reason = stripeReason(event.Data.Object.LastPaymentError)
	}

	obj := event.Data.Object
	currency := domain.NormalizeCurrency(obj.Currency)
	return domain.WebhookEvent{
		Provider:        StripeName,
		EventID:         event.ID,
		TransactionID:   obj.ID,
		IntentReference: obj.Metadata["intent_id"],
		Status:          status,
		Reason:          reason,
		Amount:          fromMinorUnits(obj.Amount, currency),
		Currency:        currency,
	}, nil
}

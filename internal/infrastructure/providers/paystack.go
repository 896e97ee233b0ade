package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/webhook"
)

const (
	PaystackName       = "paystack"
	paystackDefaultURL = "https://api.paystack.co"
)

// Paystack charges a reusable authorization. PaymentData keys:
// "authorization_code", "email". Amounts travel in minor units.
type Paystack struct {
	webhook.HMACScheme
	api       apiClient
	secretKey string
}

func NewPaystack(cfg config.ProviderConfig) *Paystack {
	secret := cfg.WebhookSecret
	if secret == "" {
		// Paystack signs webhooks with the API secret key.
		secret = cfg.SecretKey
	}
	return &Paystack{
		HMACScheme: webhook.NewHMACSHA512Scheme("x-paystack-signature", secret),
		api:        newAPIClient(PaystackName, cfg.BaseURL, paystackDefaultURL),
		secretKey:  cfg.SecretKey,
	}
}

func (p *Paystack) Name() string { return PaystackName }

type paystackTransaction struct {
	ID              int64  `json:"id"`
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

type paystackResponse struct {
	Status  bool                `json:"status"`
	Message string              `json:"message"`
	Data    paystackTransaction `json:"data"`
}

func (p *Paystack) Charge(ctx context.Context, intent *domain.PaymentIntent, data domain.PaymentData) (domain.ChargeResult, error) {
	code := data.Get("authorization_code")
	if code == "" {
		return failed("missing authorization code"), nil
	}

	payload, err := json.Marshal(map[string]string{
		"authorization_code": code,
		"email":              data.Get("email"),
		"amount":             strconv.FormatInt(toMinorUnits(intent.Amount, intent.Currency), 10),
		"currency":           intent.Currency,
		"reference":          intent.ID,
	})
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("failed to encode paystack charge: %w", err)
	}

	resp, err := p.api.do(ctx, http.MethodPost, "/transaction/charge_authorization", map[string]string{
		"Authorization": "Bearer " + p.secretKey,
		"Content-Type":  "application/json",
	}, bytes.NewReader(payload))
	if err != nil {
		return domain.ChargeResult{}, err
	}

	var parsed paystackResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return domain.ChargeResult{}, fmt.Errorf("failed to parse paystack response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !parsed.Status {
		return failed(firstNonEmpty(parsed.Message, "charge declined")), nil
	}

	txID := numericID(parsed.Data.ID)
	switch paystackStatus(parsed.Data.Status) {
	case domain.TransactionSucceeded:
		return domain.ChargeResult{Outcome: domain.ChargeSucceeded, TransactionID: txID}, nil
	case domain.TransactionFailed:
		return domain.ChargeResult{
			Outcome:       domain.ChargeFailed,
			TransactionID: txID,
			Reason:        firstNonEmpty(parsed.Data.GatewayResponse, "charge declined"),
		}, nil
	default:
		return domain.ChargeResult{Outcome: domain.ChargePending, TransactionID: txID}, nil
	}
}

func paystackStatus(s string) domain.TransactionStatus {
	switch s {
	case "success":
		return domain.TransactionSucceeded
	case "failed", "abandoned", "reversed":
		return domain.TransactionFailed
	}
	return domain.TransactionProcessing
}

type paystackWebhook struct {
	Event string              `json:"event"`
	Data  paystackTransaction `json:"data"`
}

func (p *Paystack) ParseWebhook(payload []byte) (domain.WebhookEvent, error) {
	var hook paystackWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if hook.Event == "" || (hook.Data.ID == 0 && hook.Data.Reference == "") {
		return domain.WebhookEvent{}, fmt.Errorf("%w: missing event or reference", domain.ErrMalformedPayload)
	}

	status := domain.TransactionProcessing
	switch hook.Event {
	case "charge.success":
		status = domain.TransactionSucceeded
	case "charge.failed":
		status = domain.TransactionFailed
	}

	txID := numericID(hook.Data.ID)
	eventKey := txID
	if eventKey == "" {
		eventKey = "ref:" + hook.Data.Reference
	}
	currency := domain.NormalizeCurrency(hook.Data.Currency)
	return domain.WebhookEvent{
		Provider:        PaystackName,
		EventID:         hook.Event + ":" + eventKey,
		TransactionID:   txID,
		IntentReference: hook.Data.Reference,
		Status:          status,
		Reason:          hook.Data.GatewayResponse,
		Amount:          fromMinorUnits(hook.Data.Amount, currency),
		Currency:        currency,
	}, nil
}

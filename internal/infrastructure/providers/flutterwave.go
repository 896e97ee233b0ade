package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/webhook"
	"github.com/shopspring/decimal"
)

const (
	FlutterwaveName       = "flutterwave"
	flutterwaveDefaultURL = "https://api.flutterwave.com"
)

// Flutterwave charges saved card tokens. PaymentData keys: "token", "email".
type Flutterwave struct {
	webhook.SharedSecretScheme
	api       apiClient
	secretKey string
}

func NewFlutterwave(cfg config.ProviderConfig) *Flutterwave {
	return &Flutterwave{
		SharedSecretScheme: webhook.SharedSecretScheme{Header: "verif-hash", Secret: cfg.WebhookSecret},
		api:                newAPIClient(FlutterwaveName, cfg.BaseURL, flutterwaveDefaultURL),
		secretKey:          cfg.SecretKey,
	}
}

func (f *Flutterwave) Name() string { return FlutterwaveName }

type flutterwaveCharge struct {
	ID                int64           `json:"id"`
	TxRef             string          `json:"tx_ref"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ProcessorResponse string          `json:"processor_response"`
}

type flutterwaveResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    flutterwaveCharge `json:"data"`
}

func (f *Flutterwave) Charge(ctx context.Context, intent *domain.PaymentIntent, data domain.PaymentData) (domain.ChargeResult, error) {
	token := data.Get("token")
	if token == "" {
		return failed("missing card token"), nil
	}

	payload, err := json.Marshal(map[string]string{
		"token":    token,
		"email":    data.Get("email"),
		"currency": intent.Currency,
		"amount":   intent.Amount.String(),
		"tx_ref":   intent.ID,
	})
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("failed to encode flutterwave charge: %w", err)
	}

	resp, err := f.api.do(ctx, http.MethodPost, "/v3/tokenized-charges", map[string]string{
		"Authorization": "Bearer " + f.secretKey,
		"Content-Type":  "application/json",
	}, bytes.NewReader(payload))
	if err != nil {
		return domain.ChargeResult{}, err
	}

	var parsed flutterwaveResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return domain.ChargeResult{}, fmt.Errorf("failed to parse flutterwave response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || parsed.Status != "success" {
		return failed(firstNonEmpty(parsed.Data.ProcessorResponse, parsed.Message, "charge declined")), nil
	}

	txID := numericID(parsed.Data.ID)
	switch strings.ToLower(parsed.Data.Status) {
	case "successful":
		return domain.ChargeResult{Outcome: domain.ChargeSucceeded, TransactionID: txID}, nil
	case "pending":
		return domain.ChargeResult{Outcome: domain.ChargePending, TransactionID: txID}, nil
	default:
		return domain.ChargeResult{
			Outcome:       domain.ChargeFailed,
			TransactionID: txID,
			Reason:        firstNonEmpty(parsed.Data.ProcessorResponse, "charge declined"),
		}, nil
	}
}

type flutterwaveWebhook struct {
	Event string            `json:"event"`
	Data  flutterwaveCharge `json:"data"`
}

func (f *Flutterwave) ParseWebhook(payload []byte) (domain.WebhookEvent, error) {
	var hook flutterwaveWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if hook.Data.ID == 0 && hook.Data.TxRef == "" {
		return domain.WebhookEvent{}, fmt.Errorf("%w: missing charge reference", domain.ErrMalformedPayload)
	}

	status := domain.TransactionProcessing
	switch strings.ToLower(hook.Data.Status) {
	case "successful":
		status = domain.TransactionSucceeded
	case "failed", "cancelled":
		status = domain.TransactionFailed
	}

	txID := numericID(hook.Data.ID)
	// Without a charge id the event is keyed on the merchant reference.
	eventKey := txID
	if eventKey == "" {
		eventKey = "ref:" + hook.Data.TxRef
	}
	return domain.WebhookEvent{
		Provider:        FlutterwaveName,
		EventID:         eventKey + ":" + strings.ToLower(hook.Data.Status),
		TransactionID:   txID,
		IntentReference: hook.Data.TxRef,
		Status:          status,
		Reason:          hook.Data.ProcessorResponse,
		Amount:          hook.Data.Amount,
		Currency:        domain.NormalizeCurrency(hook.Data.Currency),
	}, nil
}

// numericID renders a provider's numeric id, treating 0 as absent.
func numericID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/webhook"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MobileMoneyName       = "mobile_money"
	mobileMoneyDefaultURL = "https://sandbox.momodeveloper.mtn.com"
)

// MobileMoney issues a request-to-pay to the payer's wallet. The payer
// approves on the handset, so a successful request is always pending.
// PaymentData key: "phone".
type MobileMoney struct {
	webhook.HMACScheme
	api             apiClient
	secretKey       string
	subscriptionKey string
	newReference    func() string
}

func NewMobileMoney(cfg config.ProviderConfig) *MobileMoney {
	return &MobileMoney{
		HMACScheme:      webhook.NewHMACSHA256Scheme("X-Signature", cfg.WebhookSecret),
		api:             newAPIClient(MobileMoneyName, cfg.BaseURL, mobileMoneyDefaultURL),
		secretKey:       cfg.SecretKey,
		subscriptionKey: cfg.PublicKey,
		newReference:    uuid.NewString,
	}
}

func (m *MobileMoney) Name() string { return MobileMoneyName }

type mobileMoneyPayer struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type mobileMoneyRequest struct {
	Amount       string           `json:"amount"`
	Currency     string           `json:"currency"`
	ExternalID   string           `json:"externalId"`
	Payer        mobileMoneyPayer `json:"payer"`
	PayerMessage string           `json:"payerMessage"`
	PayeeNote    string           `json:"payeeNote"`
}

type mobileMoneyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (m *MobileMoney) Charge(ctx context.Context, intent *domain.PaymentIntent, data domain.PaymentData) (domain.ChargeResult, error) {
	phone := strings.TrimPrefix(data.Get("phone"), "+")
	if phone == "" {
		return failed("missing payer phone number"), nil
	}

	payload, err := json.Marshal(mobileMoneyRequest{
		Amount:       intent.Amount.Round(domain.MinorUnits(intent.Currency)).String(),
		Currency:     intent.Currency,
		ExternalID:   intent.ID,
		Payer:        mobileMoneyPayer{PartyIDType: "MSISDN", PartyID: phone},
		PayerMessage: "Payment " + intent.OrderID,
		PayeeNote:    intent.ID,
	})
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("failed to encode mobile money request: %w", err)
	}

	reference := m.newReference()
	resp, err := m.api.do(ctx, http.MethodPost, "/collection/v1_0/requesttopay", map[string]string{
		"Authorization":             "Bearer " + m.secretKey,
		"Ocp-Apim-Subscription-Key": m.subscriptionKey,
		"X-Reference-Id":            reference,
		"Content-Type":              "application/json",
	}, bytes.NewReader(payload))
	if err != nil {
		return domain.ChargeResult{}, err
	}

	if resp.StatusCode == http.StatusAccepted {
		return domain.ChargeResult{Outcome: domain.ChargePending, TransactionID: reference}, nil
	}

	var apiErr mobileMoneyError
	_ = json.Unmarshal(resp.Body, &apiErr)
	return failed(firstNonEmpty(apiErr.Code, apiErr.Message, fmt.Sprintf("request rejected with status %d", resp.StatusCode))), nil
}

type mobileMoneyCallback struct {
	ReferenceID            string          `json:"referenceId"`
	FinancialTransactionID string          `json:"financialTransactionId"`
	ExternalID             string          `json:"externalId"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	Status                 string          `json:"status"`
	Reason                 string          `json:"reason"`
}

func (m *MobileMoney) ParseWebhook(payload []byte) (domain.WebhookEvent, error) {
	var cb mobileMoneyCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if cb.ReferenceID == "" || cb.Status == "" {
		return domain.WebhookEvent{}, fmt.Errorf("%w: missing reference or status", domain.ErrMalformedPayload)
	}

	status := domain.TransactionProcessing
	switch strings.ToUpper(cb.Status) {
	case "SUCCESSFUL":
		status = domain.TransactionSucceeded
	case "FAILED", "REJECTED", "TIMEOUT":
		status = domain.TransactionFailed
	}

	return domain.WebhookEvent{
		Provider:        MobileMoneyName,
		EventID:         cb.ReferenceID + ":" + strings.ToUpper(cb.Status),
		TransactionID:   cb.ReferenceID,
		IntentReference: cb.ExternalID,
		Status:          status,
		Reason:          cb.Reason,
		Amount:          cb.Amount,
		Currency:        domain.NormalizeCurrency(cb.Currency),
	}, nil
}

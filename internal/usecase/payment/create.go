package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/jaevor/go-nanoid"
)

const intentIDPrefix = "pi_"

func newIntentIDGenerator() (func() string, error) {
	generate, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to init intent id generator: %w", err)
	}
	return func() string { return intentIDPrefix + generate() }, nil
}

var sensitiveMetadataKeys = []string{
	"card_number",
	"cardnumber",
	"pan",
	"cvv",
	"cvc",
	"pin",
	"password",
	"account_number",
	"secret",
}

func (uc *DefaultPaymentUsecase) CreateIntent(ctx context.Context, input CreateIntentInput) (*domain.PaymentIntent, error) {
	ctx, span := uc.tracer.Start(ctx, "CreateIntent")
	defer span.End()

	currency := domain.NormalizeCurrency(input.Currency)
	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if !uc.Currencies.IsSupported(currency) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, input.Currency)
	}
	if _, ok := uc.Providers.Get(input.PaymentMethod); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPaymentMethod, input.PaymentMethod)
	}
	if key, found := findSensitiveKey(input.Metadata); found {
		return nil, fmt.Errorf("%w: %s", domain.ErrSensitiveMetadata, key)
	}

	now := uc.now()
	intent := &domain.PaymentIntent{
		ID:            uc.newID(),
		Amount:        input.Amount,
		Currency:      currency,
		Status:        domain.IntentPending,
		PaymentMethod: input.PaymentMethod,
		OrderID:       input.OrderID,
		CustomerID:    input.CustomerID,
		Metadata:      input.Metadata,
		CreatedAt:     now,
		ExpiresAt:     now.Add(uc.opts.IntentTTL),
		UpdatedAt:     now,
	}
	if err := uc.Intents.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	uc.recordIntentCreatedMetrics(intent)
	uc.logger.Info("payment intent created",
		"intent_id", intent.ID,
		"order_id", intent.OrderID,
		"payment_method", intent.PaymentMethod,
		"amount", intent.Amount.String(),
		"currency", intent.Currency,
		"expires_at", intent.ExpiresAt,
	)
	return intent, nil
}

func findSensitiveKey(metadata map[string]string) (string, bool) {
	for key := range metadata {
		normalized := strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(key))
		for _, sensitive := range sensitiveMetadataKeys {
			// Short keys like "pin" only match exactly so "shipping" passes.
			if normalized == sensitive || (len(sensitive) > 3 && strings.Contains(normalized, sensitive)) {
				return key, true
			}
		}
	}
	return "", false
}

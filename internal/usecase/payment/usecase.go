package payment

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/ledger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type PaymentUsecase interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*domain.PaymentIntent, error)
	ProcessIntent(ctx context.Context, intentID string, data domain.PaymentData) (*ProcessResult, error)
	HandleWebhook(ctx context.Context, provider string, headers http.Header, payload []byte) (*WebhookResult, error)
	SweepStaleProcessing(ctx context.Context) (int, error)

	GetIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error)
	ListTransactions(ctx context.Context, intentID string) ([]*domain.Transaction, error)
}

type ProviderRegistry interface {
	Get(name string) (domain.PaymentProvider, bool)
}

type SignatureVerifier interface {
	Verify(provider string, headers http.Header, payload []byte) error
	Parse(provider string, payload []byte) (domain.WebhookEvent, error)
}

type CurrencySupport interface {
	IsSupported(code string) bool
}

type CreateIntentInput struct {
	Amount        decimal.Decimal
	Currency      string
	OrderID       string
	CustomerID    string
	PaymentMethod string
	Metadata      map[string]string
}

type ProcessResult struct {
	Intent        *domain.PaymentIntent
	Transaction   *domain.Transaction
	Outcome       domain.ChargeOutcome
	TransactionID string
	Reason        string
}

type WebhookResult struct {
	Outcome  domain.WebhookOutcome
	EventID  string
	IntentID string
	Status   domain.IntentStatus
}

type Options struct {
	IntentTTL       time.Duration
	ProviderTimeout time.Duration
	// SettlementGrace of zero disables SweepStaleProcessing.
	SettlementGrace time.Duration
	SweepBatchSize  int
}

type Deps struct {
	Intents       domain.IntentRepository
	WebhookEvents domain.WebhookEventRepository
	Providers     ProviderRegistry
	Verifier      SignatureVerifier
	Ledger        ledger.Ledger
	Currencies    CurrencySupport
	Publisher     domain.PaymentEventPublisher
	Metrics       *metrics.PaymentMetrics
	Tracer        trace.Tracer
	Logger        *slog.Logger
}

type DefaultPaymentUsecase struct {
	Intents       domain.IntentRepository
	WebhookEvents domain.WebhookEventRepository
	Providers     ProviderRegistry
	Verifier      SignatureVerifier
	Ledger        ledger.Ledger
	Currencies    CurrencySupport
	Publisher     domain.PaymentEventPublisher
	Metrics       *metrics.PaymentMetrics

	opts   Options
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewDefaultPaymentUsecase(deps Deps, opts Options) (*DefaultPaymentUsecase, error) {
	if opts.IntentTTL <= 0 {
		opts.IntentTTL = 30 * time.Minute
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 15 * time.Second
	}
	if opts.SweepBatchSize <= 0 {
		opts.SweepBatchSize = 100
	}

	newID, err := newIntentIDGenerator()
	if err != nil {
		return nil, err
	}

	uc := &DefaultPaymentUsecase{
		Intents:       deps.Intents,
		WebhookEvents: deps.WebhookEvents,
		Providers:     deps.Providers,
		Verifier:      deps.Verifier,
		Ledger:        deps.Ledger,
		Currencies:    deps.Currencies,
		Publisher:     deps.Publisher,
		Metrics:       deps.Metrics,
		opts:          opts,
		tracer:        deps.Tracer,
		logger:        deps.Logger,
		now:           time.Now,
		newID:         newID,
	}
	if uc.tracer == nil {
		uc.tracer = otel.Tracer("payment-orchestrator")
	}
	if uc.logger == nil {
		uc.logger = slog.Default()
	}
	return uc, nil
}

package domain

import (
	"context"
	"time"
)

type IntentRepository interface {
	Create(ctx context.Context, intent *PaymentIntent) error
	GetByID(ctx context.Context, id string) (*PaymentIntent, error)
	GetByProviderTransactionID(ctx context.Context, provider, transactionID string) (*PaymentIntent, error)
	// TransitionStatus moves the intent from one status to another only if it is
	// still in the expected status. It returns ErrStaleTransition otherwise.
	TransitionStatus(ctx context.Context, id string, from, to IntentStatus, update IntentUpdate) error
	AttachProviderTransaction(ctx context.Context, id, transactionID string) error
	FindStaleProcessing(ctx context.Context, expiredBefore time.Time, limit int) ([]*PaymentIntent, error)
}

// TransactionRepository has no delete and no free-form update.
type TransactionRepository interface {
	Append(ctx context.Context, tx *Transaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)
	ListByIntent(ctx context.Context, intentID string) ([]*Transaction, error)
	// SettleStatus updates a processing entry to a terminal status. It reports
	// false without error when the entry was already terminal.
	SettleStatus(ctx context.Context, transactionID string, to TransactionStatus, errorMessage *string) (bool, error)
}

type RateRepository interface {
	GetRate(ctx context.Context, base, target string) (*CurrencyRate, error)
	ListRates(ctx context.Context) ([]CurrencyRate, error)
	// ApplyRateUpdates commits every update and its history row, or nothing.
	ApplyRateUpdates(ctx context.Context, updates []RateUpdate, actor, source string) ([]RateChange, error)
	ListHistory(ctx context.Context, limit int) ([]RateChange, error)
}

type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
)

type WebhookEventRecord struct {
	ID             string
	Provider       string
	EventID        string
	IntentID       string
	TransactionID  string
	ReportedStatus string
	Outcome        WebhookOutcome
	ReceivedAt     time.Time
}

type WebhookEventRepository interface {
	// Record returns ErrDuplicateWebhookEvent when (provider, event id) exists.
	Record(ctx context.Context, record *WebhookEventRecord) error
	Find(ctx context.Context, provider, eventID string) (*WebhookEventRecord, error)
}

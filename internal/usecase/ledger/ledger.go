package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountConverter is the part of the currency converter the ledger needs.
type AmountConverter interface {
	ConvertToAll(ctx context.Context, amount decimal.Decimal, from string) map[string]decimal.Decimal
}

type Ledger interface {
	Record(ctx context.Context, in RecordInput) (*domain.Transaction, error)
	ApplyWebhookStatus(ctx context.Context, transactionID string, status domain.TransactionStatus, reason string) (bool, error)
	ListByIntent(ctx context.Context, intentID string) ([]*domain.Transaction, error)
}

type RecordInput struct {
	// TransactionID is generated when empty.
	TransactionID string
	IntentID      string
	Provider      string
	Amount        decimal.Decimal
	Currency      string
	Status        domain.TransactionStatus
	ErrorMessage  string
}

type DefaultLedger struct {
	repo      domain.TransactionRepository
	converter AmountConverter
	logger    *slog.Logger
	now       func() time.Time
}

func NewDefaultLedger(repo domain.TransactionRepository, converter AmountConverter, logger *slog.Logger) *DefaultLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultLedger{
		repo:      repo,
		converter: converter,
		logger:    logger,
		now:       time.Now,
	}
}

func NewTransactionID() string {
	return "txn_" + uuid.NewString()
}

// Record converts the amount into every supported currency and appends one entry.
func (l *DefaultLedger) Record(ctx context.Context, in RecordInput) (*domain.Transaction, error) {
	if in.IntentID == "" {
		return nil, fmt.Errorf("ledger entry requires an intent id")
	}
	if in.TransactionID == "" {
		in.TransactionID = NewTransactionID()
	}

	now := l.now()
	tx := &domain.Transaction{
		TransactionID:    in.TransactionID,
		IntentID:         in.IntentID,
		Provider:         in.Provider,
		AmountOriginal:   in.Amount,
		CurrencyOriginal: domain.NormalizeCurrency(in.Currency),
		Amounts:          l.converter.ConvertToAll(ctx, in.Amount, in.Currency),
		Status:           in.Status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.ErrorMessage != "" {
		msg := in.ErrorMessage
		tx.ErrorMessage = &msg
	}

	if err := l.repo.Append(ctx, tx); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to append ledger entry %s: %w", tx.TransactionID, err)
	}

	l.logger.Info("ledger entry recorded",
		"transaction_id", tx.TransactionID,
		"intent_id", tx.IntentID,
		"provider", tx.Provider,
		"status", tx.Status,
	)
	return tx, nil
}

// ApplyWebhookStatus moves a processing entry to a terminal status. An entry
// that is already terminal is left as it is and false is returned.
func (l *DefaultLedger) ApplyWebhookStatus(ctx context.Context, transactionID string, status domain.TransactionStatus, reason string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("ledger status %q is not terminal", status)
	}

	var msg *string
	if reason != "" {
		msg = &reason
	}
	applied, err := l.repo.SettleStatus(ctx, transactionID, status, msg)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to settle ledger entry %s: %w", transactionID, err)
	}
	if !applied {
		l.logger.Info("ledger entry already settled", "transaction_id", transactionID, "requested_status", status)
	}
	return applied, nil
}

func (l *DefaultLedger) ListByIntent(ctx context.Context, intentID string) ([]*domain.Transaction, error) {
	return l.repo.ListByIntent(ctx, intentID)
}

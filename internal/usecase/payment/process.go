package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/ledger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const expiredReason = "payment intent expired"

// ProcessIntent dispatches a pending intent to its provider. The conditional
// pending->processing update is the idempotency guard: of any number of
// concurrent callers exactly one reaches the provider.
func (uc *DefaultPaymentUsecase) ProcessIntent(ctx context.Context, intentID string, data domain.PaymentData) (*ProcessResult, error) {
	ctx, span := uc.tracer.Start(ctx, "ProcessIntent", trace.WithAttributes(attribute.String("intent.id", intentID)))
	defer span.End()

	result, err := uc.processIntent(ctx, intentID, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (uc *DefaultPaymentUsecase) processIntent(ctx context.Context, intentID string, data domain.PaymentData) (*ProcessResult, error) {
	intent, err := uc.Intents.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != domain.IntentPending {
		if intent.Status.IsTerminal() {
			// A retry after a failed ledger write completes the entry.
			if err := uc.repairLedger(ctx, intent); err != nil {
				return nil, err
			}
		}
		return nil, &domain.NotProcessableError{IntentID: intent.ID, Status: intent.Status}
	}

	if intent.IsExpired(uc.now()) {
		return nil, uc.expire(ctx, intent)
	}

	provider, ok := uc.Providers.Get(intent.PaymentMethod)
	if !ok {
		uc.logger.Error("payment method has no configured provider", "intent_id", intent.ID, "payment_method", intent.PaymentMethod)
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotConfigured, intent.PaymentMethod)
	}

	if err := uc.transition(ctx, intent, domain.IntentProcessing, domain.IntentUpdate{}); err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			return nil, uc.notProcessable(ctx, intent.ID)
		}
		return nil, err
	}

	charge := uc.charge(ctx, provider, intent, data)
	if charge.Outcome == domain.ChargePending {
		return uc.awaitSettlement(ctx, intent, provider.Name(), charge)
	}
	return uc.settle(ctx, intent, provider.Name(), charge)
}

func (uc *DefaultPaymentUsecase) expire(ctx context.Context, intent *domain.PaymentIntent) error {
	err := uc.transition(ctx, intent, domain.IntentCancelled, domain.IntentUpdate{FailureReason: expiredReason})
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			return uc.notProcessable(ctx, intent.ID)
		}
		return err
	}

	uc.publish(ctx, intent, domain.EventPaymentCancelled, "")
	return fmt.Errorf("%w: intent %s expired at %s", domain.ErrIntentExpired, intent.ID, intent.ExpiresAt.Format(time.RFC3339))
}

// charge calls the adapter under a bounded deadline. Transport errors and
// timeouts are provider failures.
func (uc *DefaultPaymentUsecase) charge(ctx context.Context, provider domain.PaymentProvider, intent *domain.PaymentIntent, data domain.PaymentData) domain.ChargeResult {
	callCtx, cancel := context.WithTimeout(ctx, uc.opts.ProviderTimeout)
	defer cancel()

	ctx, span := uc.tracer.Start(callCtx, "ProviderCharge", trace.WithAttributes(attribute.String("provider", provider.Name())))
	defer span.End()

	started := time.Now()
	result, err := provider.Charge(ctx, intent, data)
	elapsed := time.Since(started)

	if err != nil {
		reason := "provider error: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = "provider timeout"
		}
		span.RecordError(err)
		uc.logger.Warn("provider charge failed",
			"intent_id", intent.ID,
			"provider", provider.Name(),
			"duration", elapsed,
			"error", err,
		)
		result = domain.ChargeResult{Outcome: domain.ChargeFailed, Reason: reason}
	}
	if result.Outcome == domain.ChargeFailed && result.Reason == "" {
		result.Reason = "charge declined"
	}

	uc.recordChargeMetrics(provider.Name(), result.Outcome, elapsed)
	return result
}

// settle finishes a synchronous success or failure.
func (uc *DefaultPaymentUsecase) settle(ctx context.Context, intent *domain.PaymentIntent, provider string, charge domain.ChargeResult) (*ProcessResult, error) {
	to := domain.IntentSucceeded
	txStatus := domain.TransactionSucceeded
	eventType := domain.EventPaymentSucceeded
	update := domain.IntentUpdate{}
	if charge.Outcome == domain.ChargeFailed {
		to = domain.IntentFailed
		txStatus = domain.TransactionFailed
		eventType = domain.EventPaymentFailed
		update.FailureReason = charge.Reason
	}

	txID := charge.TransactionID
	if txID == "" {
		txID = ledger.NewTransactionID()
	}
	update.ProviderTransactionID = txID

	if err := uc.transition(ctx, intent, to, update); err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			// A webhook settled the intent while the provider call was in flight.
			return uc.currentResult(ctx, intent.ID)
		}
		return nil, err
	}

	tx, err := uc.Ledger.Record(ctx, ledger.RecordInput{
		TransactionID: txID,
		IntentID:      intent.ID,
		Provider:      provider,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Status:        txStatus,
		ErrorMessage:  update.FailureReason,
	})
	wrote := err == nil
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		// A concurrent repair appended the entry first.
		wrote, err = uc.Ledger.ApplyWebhookStatus(ctx, txID, txStatus, update.FailureReason)
		if err == nil {
			tx = uc.findEntry(ctx, intent.ID, txID)
		}
	}
	if err != nil {
		uc.ledgerWriteFailed(intent.ID, txID, err)
		return nil, fmt.Errorf("intent %s is %s but the ledger write failed: %w", intent.ID, to, err)
	}

	if wrote {
		uc.publish(ctx, intent, eventType, txID)
	}
	return &ProcessResult{
		Intent:        intent,
		Transaction:   tx,
		Outcome:       charge.Outcome,
		TransactionID: txID,
		Reason:        charge.Reason,
	}, nil
}

// awaitSettlement keeps the intent processing and records the provider reference
// so the settlement webhook can be routed back to it.
func (uc *DefaultPaymentUsecase) awaitSettlement(ctx context.Context, intent *domain.PaymentIntent, provider string, charge domain.ChargeResult) (*ProcessResult, error) {
	txID := charge.TransactionID
	if txID == "" {
		txID = ledger.NewTransactionID()
		uc.logger.Warn("provider returned no reference for pending charge", "intent_id", intent.ID, "provider", provider)
	}

	if err := uc.Intents.AttachProviderTransaction(ctx, intent.ID, txID); err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			return uc.currentResult(ctx, intent.ID)
		}
		return nil, fmt.Errorf("failed to attach provider transaction: %w", err)
	}
	intent.ProviderTransactionID = txID

	tx, err := uc.Ledger.Record(ctx, ledger.RecordInput{
		TransactionID: txID,
		IntentID:      intent.ID,
		Provider:      provider,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Status:        domain.TransactionProcessing,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			// The settlement webhook won and already wrote the entry.
			return uc.currentResult(ctx, intent.ID)
		}
		uc.ledgerWriteFailed(intent.ID, txID, err)
		return nil, fmt.Errorf("intent %s is awaiting settlement but the ledger write failed: %w", intent.ID, err)
	}

	uc.logger.Info("payment awaiting provider settlement", "intent_id", intent.ID, "provider", provider, "transaction_id", txID)
	return &ProcessResult{
		Intent:        intent,
		Transaction:   tx,
		Outcome:       domain.ChargePending,
		TransactionID: txID,
	}, nil
}

func (uc *DefaultPaymentUsecase) findEntry(ctx context.Context, intentID, txID string) *domain.Transaction {
	entries, err := uc.Ledger.ListByIntent(ctx, intentID)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.TransactionID == txID {
			return entry
		}
	}
	return nil
}

func (uc *DefaultPaymentUsecase) currentResult(ctx context.Context, intentID string) (*ProcessResult, error) {
	intent, err := uc.Intents.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{Intent: intent, TransactionID: intent.ProviderTransactionID, Reason: intent.FailureReason}
	switch intent.Status {
	case domain.IntentSucceeded:
		result.Outcome = domain.ChargeSucceeded
	case domain.IntentFailed, domain.IntentCancelled:
		result.Outcome = domain.ChargeFailed
	default:
		result.Outcome = domain.ChargePending
	}
	return result, nil
}

func (uc *DefaultPaymentUsecase) notProcessable(ctx context.Context, intentID string) error {
	current, err := uc.Intents.GetByID(ctx, intentID)
	if err != nil {
		return err
	}
	return &domain.NotProcessableError{IntentID: intentID, Status: current.Status}
}

// transition applies a guarded status change and mirrors it on intent.
func (uc *DefaultPaymentUsecase) transition(ctx context.Context, intent *domain.PaymentIntent, to domain.IntentStatus, update domain.IntentUpdate) error {
	from := intent.Status
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s is not a legal transition", domain.ErrStaleTransition, from, to)
	}
	if err := uc.Intents.TransitionStatus(ctx, intent.ID, from, to, update); err != nil {
		return err
	}

	intent.Status = to
	if update.ProviderTransactionID != "" && intent.ProviderTransactionID == "" {
		intent.ProviderTransactionID = update.ProviderTransactionID
	}
	if update.FailureReason != "" {
		intent.FailureReason = update.FailureReason
	}
	intent.UpdatedAt = uc.now()

	uc.recordTransitionMetrics(intent.PaymentMethod, from, to)
	uc.logger.Info("payment intent transitioned",
		"intent_id", intent.ID,
		"from", from,
		"to", to,
		"reason", update.FailureReason,
	)
	return nil
}

func (uc *DefaultPaymentUsecase) ledgerWriteFailed(intentID, txID string, err error) {
	if uc.Metrics != nil {
		uc.Metrics.RecordLedgerWriteError()
	}
	uc.logger.Error("ledger write failed after status transition",
		"intent_id", intentID,
		"transaction_id", txID,
		"error", err,
	)
}

package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/ledger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandleWebhook authenticates the raw payload before anything reads it. An
// accepted webhook returns a result even when it changes nothing; only
// rejected ones return an error.
func (uc *DefaultPaymentUsecase) HandleWebhook(ctx context.Context, provider string, headers http.Header, payload []byte) (*WebhookResult, error) {
	ctx, span := uc.tracer.Start(ctx, "HandleWebhook", trace.WithAttributes(attribute.String("provider", provider)))
	defer span.End()

	if err := uc.Verifier.Verify(provider, headers, payload); err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			if uc.Metrics != nil {
				uc.Metrics.RecordSignatureFailure(provider)
			}
			uc.logger.Warn("webhook signature rejected",
				"security_event", "webhook_forgery_suspected",
				"provider", provider,
				"payload_bytes", len(payload),
				"error", err,
			)
		}
		span.SetStatus(codes.Error, "rejected")
		return nil, err
	}

	event, err := uc.Verifier.Parse(provider, payload)
	if err != nil {
		if uc.Metrics != nil {
			uc.Metrics.RecordMalformedWebhook(provider)
		}
		uc.logger.Warn("verified webhook could not be parsed", "provider", provider, "error", err)
		span.SetStatus(codes.Error, "malformed")
		if !errors.Is(err, domain.ErrMalformedPayload) {
			err = fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
		}
		return nil, err
	}
	if event.EventID == "" {
		sum := sha256.Sum256(payload)
		event.EventID = hex.EncodeToString(sum[:])
	}
	span.SetAttributes(attribute.String("webhook.event_id", event.EventID))

	if _, err := uc.WebhookEvents.Find(ctx, provider, event.EventID); err == nil {
		uc.recordWebhookMetrics(provider, domain.WebhookDuplicate)
		uc.logger.Info("webhook event already handled", "provider", provider, "event_id", event.EventID)
		return &WebhookResult{Outcome: domain.WebhookDuplicate, EventID: event.EventID}, nil
	} else if !errors.Is(err, domain.ErrWebhookEventNotFound) {
		return nil, fmt.Errorf("failed to look up webhook event: %w", err)
	}

	result, err := uc.applyWebhook(ctx, provider, event)
	if err != nil {
		return nil, err
	}

	record := &domain.WebhookEventRecord{
		ID:             uuid.NewString(),
		Provider:       provider,
		EventID:        event.EventID,
		IntentID:       result.IntentID,
		TransactionID:  event.TransactionID,
		ReportedStatus: string(event.Status),
		Outcome:        result.Outcome,
		ReceivedAt:     uc.now(),
	}
	if err := uc.WebhookEvents.Record(ctx, record); err != nil {
		if !errors.Is(err, domain.ErrDuplicateWebhookEvent) {
			return nil, fmt.Errorf("failed to record webhook event: %w", err)
		}
		result.Outcome = domain.WebhookDuplicate
	}

	uc.recordWebhookMetrics(provider, result.Outcome)
	uc.logger.Info("webhook accepted",
		"provider", provider,
		"event_id", event.EventID,
		"intent_id", result.IntentID,
		"reported_status", event.Status,
		"outcome", result.Outcome,
	)
	return result, nil
}

func (uc *DefaultPaymentUsecase) applyWebhook(ctx context.Context, provider string, event domain.WebhookEvent) (*WebhookResult, error) {
	result := &WebhookResult{Outcome: domain.WebhookIgnored, EventID: event.EventID}

	intent, err := uc.locateIntent(ctx, provider, event)
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			uc.logger.Warn("webhook does not match any intent",
				"provider", provider,
				"event_id", event.EventID,
				"transaction_id", event.TransactionID,
				"intent_reference", event.IntentReference,
			)
			return result, nil
		}
		return nil, err
	}
	result.IntentID = intent.ID
	result.Status = intent.Status

	switch {
	case intent.Status.IsTerminal():
		// A redelivery after a failed ledger write completes the entry.
		if err := uc.repairLedger(ctx, intent); err != nil {
			return nil, err
		}
		result.Outcome = domain.WebhookDuplicate
		return result, nil
	case !event.IsSettlement():
		return result, nil
	case intent.Status != domain.IntentProcessing:
		uc.logger.Warn("settlement webhook for an intent that was never dispatched", "intent_id", intent.ID, "status", intent.Status)
		return result, nil
	case !matchesIntentAmount(intent, event):
		uc.logger.Warn("webhook amount does not match intent",
			"security_event", "webhook_amount_mismatch",
			"intent_id", intent.ID,
			"intent_amount", intent.Amount.String(),
			"intent_currency", intent.Currency,
			"webhook_amount", event.Amount.String(),
			"webhook_currency", event.Currency,
		)
		return result, nil
	}

	// The ledger id is fixed on the intent by the transition so a later repair
	// writes the same entry.
	ledgerTxID := intent.ProviderTransactionID
	if ledgerTxID == "" {
		ledgerTxID = event.TransactionID
	}
	if ledgerTxID == "" {
		ledgerTxID = ledger.NewTransactionID()
	}

	to := domain.IntentSucceeded
	eventType := domain.EventPaymentSucceeded
	update := domain.IntentUpdate{ProviderTransactionID: ledgerTxID}
	if event.Status == domain.TransactionFailed {
		to = domain.IntentFailed
		eventType = domain.EventPaymentFailed
		update.FailureReason = event.Reason
		if update.FailureReason == "" {
			update.FailureReason = "reported failed by provider"
		}
	}

	if err := uc.transition(ctx, intent, to, update); err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			current, getErr := uc.Intents.GetByID(ctx, intent.ID)
			if getErr == nil {
				result.Status = current.Status
			}
			result.Outcome = domain.WebhookDuplicate
			return result, nil
		}
		return nil, err
	}
	result.Status = intent.Status
	result.Outcome = domain.WebhookApplied

	wrote, err := uc.settleLedger(ctx, intent, ledgerTxID, event.Status, update.FailureReason)
	if err != nil {
		uc.ledgerWriteFailed(intent.ID, ledgerTxID, err)
		return nil, fmt.Errorf("intent %s is %s but the ledger write failed: %w", intent.ID, to, err)
	}
	if wrote {
		uc.publish(ctx, intent, eventType, ledgerTxID)
	}
	return result, nil
}

// locateIntent prefers the provider reference and falls back to the intent id
// the provider echoes back. An intent owned by another provider is not a match.
func (uc *DefaultPaymentUsecase) locateIntent(ctx context.Context, provider string, event domain.WebhookEvent) (*domain.PaymentIntent, error) {
	if event.TransactionID != "" {
		intent, err := uc.Intents.GetByProviderTransactionID(ctx, provider, event.TransactionID)
		if err == nil {
			return intent, nil
		}
		if !errors.Is(err, domain.ErrIntentNotFound) {
			return nil, err
		}
	}
	if event.IntentReference == "" {
		return nil, domain.ErrIntentNotFound
	}

	intent, err := uc.Intents.GetByID(ctx, event.IntentReference)
	if err != nil {
		return nil, err
	}
	if intent.PaymentMethod != provider {
		return nil, domain.ErrIntentNotFound
	}
	return intent, nil
}

// matchesIntentAmount accepts events that carry no amount.
func matchesIntentAmount(intent *domain.PaymentIntent, event domain.WebhookEvent) bool {
	if event.Currency != "" && event.Currency != intent.Currency {
		return false
	}
	if event.Amount.IsZero() {
		return true
	}
	return event.Amount.Equal(intent.Amount)
}

// settleLedger applies the bounded status update to an existing entry, or
// appends one when the intent has none yet. It reports whether this call
// settled the entry; false means another writer already had.
func (uc *DefaultPaymentUsecase) settleLedger(ctx context.Context, intent *domain.PaymentIntent, txID string, status domain.TransactionStatus, reason string) (bool, error) {
	if txID != "" {
		applied, err := uc.Ledger.ApplyWebhookStatus(ctx, txID, status, reason)
		if err == nil {
			return applied, nil
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return false, err
		}
	}

	_, err := uc.Ledger.Record(ctx, ledger.RecordInput{
		TransactionID: txID,
		IntentID:      intent.ID,
		Provider:      intent.PaymentMethod,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Status:        status,
		ErrorMessage:  reason,
	})
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		// Appended concurrently, possibly still processing.
		return uc.Ledger.ApplyWebhookStatus(ctx, txID, status, reason)
	}
	return err == nil, err
}

// repairLedger writes the settled entry of a terminal intent whose ledger
// write failed after the status change, and publishes the event that was
// held back with it.
func (uc *DefaultPaymentUsecase) repairLedger(ctx context.Context, intent *domain.PaymentIntent) error {
	status := domain.TransactionSucceeded
	eventType := domain.EventPaymentSucceeded
	switch intent.Status {
	case domain.IntentSucceeded:
	case domain.IntentFailed:
		status = domain.TransactionFailed
		eventType = domain.EventPaymentFailed
	default:
		return nil
	}

	entries, err := uc.Ledger.ListByIntent(ctx, intent.ID)
	if err != nil {
		return fmt.Errorf("failed to list ledger entries: %w", err)
	}
	for _, entry := range entries {
		if entry.Status.IsTerminal() {
			return nil
		}
	}

	txID := intent.ProviderTransactionID
	wrote, err := uc.settleLedger(ctx, intent, txID, status, intent.FailureReason)
	if err != nil {
		uc.ledgerWriteFailed(intent.ID, txID, err)
		return fmt.Errorf("intent %s is %s but the ledger write failed: %w", intent.ID, intent.Status, err)
	}
	if wrote {
		uc.logger.Warn("ledger entry repaired for settled intent", "intent_id", intent.ID, "status", intent.Status, "transaction_id", txID)
		uc.publish(ctx, intent, eventType, txID)
	}
	return nil
}

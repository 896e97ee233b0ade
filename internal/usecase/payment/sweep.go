package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/ledger"
)

const settlementTimeoutReason = "settlement timeout"

// SweepStaleProcessing fails intents that have been processing for longer than
// their expiry plus the settlement grace without hearing from the provider.
// It returns the number of intents it failed.
func (uc *DefaultPaymentUsecase) SweepStaleProcessing(ctx context.Context) (int, error) {
	if uc.opts.SettlementGrace <= 0 {
		return 0, nil
	}

	ctx, span := uc.tracer.Start(ctx, "SweepStaleProcessing")
	defer span.End()

	cutoff := uc.now().Add(-uc.opts.SettlementGrace)
	stale, err := uc.Intents.FindStaleProcessing(ctx, cutoff, uc.opts.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale processing intents: %w", err)
	}

	swept := 0
	for _, intent := range stale {
		if err := ctx.Err(); err != nil {
			return swept, err
		}

		ledgerTxID := intent.ProviderTransactionID
		if ledgerTxID == "" {
			ledgerTxID = ledger.NewTransactionID()
		}
		err := uc.transition(ctx, intent, domain.IntentFailed, domain.IntentUpdate{
			ProviderTransactionID: ledgerTxID,
			FailureReason:         settlementTimeoutReason,
		})
		if errors.Is(err, domain.ErrStaleTransition) {
			continue
		}
		if err != nil {
			uc.logger.Error("failed to sweep stale intent", "intent_id", intent.ID, "error", err)
			continue
		}

		wrote, err := uc.settleLedger(ctx, intent, ledgerTxID, domain.TransactionFailed, settlementTimeoutReason)
		if err != nil {
			uc.ledgerWriteFailed(intent.ID, ledgerTxID, err)
		}
		// A failed write is published now; a later repair publishes again.
		if wrote || err != nil {
			uc.publish(ctx, intent, domain.EventPaymentFailed, ledgerTxID)
		}
		swept++
	}

	if swept > 0 {
		uc.logger.Warn("failed stale processing intents", "count", swept, "cutoff", cutoff)
	}
	return swept, nil
}

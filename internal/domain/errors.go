package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrUnsupportedCurrency   = errors.New("unsupported currency")
	ErrUnknownPaymentMethod  = errors.New("unknown or inactive payment method")
	ErrSensitiveMetadata     = errors.New("metadata must not contain payment secrets")
	ErrIntentNotFound        = errors.New("payment intent not found")
	ErrIntentExpired         = errors.New("payment intent expired")
	ErrIntentNotProcessable  = errors.New("payment intent is not processable")
	ErrStaleTransition       = errors.New("payment intent status changed concurrently")
	ErrProviderNotConfigured = errors.New("payment provider is not configured")

	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrUnknownProvider  = errors.New("unknown webhook provider")

	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrDuplicateTransaction = errors.New("transaction already recorded")

	ErrRateNotFound          = errors.New("currency rate not found")
	ErrInvalidRateUpdate     = errors.New("invalid rate update")
	ErrDuplicateWebhookEvent = errors.New("webhook event already recorded")
	ErrWebhookEventNotFound  = errors.New("webhook event not found")
)

// NotProcessableError tells a retrying caller what the intent ended up as, so a
// prior success can be treated as idempotent success.
type NotProcessableError struct {
	IntentID string
	Status   IntentStatus
}

func (e *NotProcessableError) Error() string {
	return fmt.Sprintf("payment intent %s already processed: status %s", e.IntentID, e.Status)
}

func (e *NotProcessableError) Unwrap() error { return ErrIntentNotProcessable }

// AlreadySucceeded reports whether err is a re-entrancy rejection for an intent that succeeded.
func AlreadySucceeded(err error) bool {
	var np *NotProcessableError
	return errors.As(err, &np) && np.Status == IntentSucceeded
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	IntentPending    IntentStatus = "pending"
	IntentProcessing IntentStatus = "processing"
	IntentSucceeded  IntentStatus = "succeeded"
	IntentFailed     IntentStatus = "failed"
	IntentCancelled  IntentStatus = "cancelled"
)

// transitions lists the only forward edges an intent may take.
var transitions = map[IntentStatus][]IntentStatus{
	IntentPending:    {IntentProcessing, IntentCancelled},
	IntentProcessing: {IntentSucceeded, IntentFailed},
}

func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentSucceeded, IntentFailed, IntentCancelled:
		return true
	}
	return false
}

func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentIntent struct {
	ID                    string
	Amount                decimal.Decimal
	Currency              string
	Status                IntentStatus
	PaymentMethod         string
	OrderID               string
	CustomerID            string
	Metadata              map[string]string
	ProviderTransactionID string
	FailureReason         string
	CreatedAt             time.Time
	ExpiresAt             time.Time
	UpdatedAt             time.Time
}

func (i *PaymentIntent) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IntentUpdate carries the optional columns written together with a status change.
type IntentUpdate struct {
	ProviderTransactionID string
	FailureReason         string
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

// IntentStore is an in-process IntentRepository. The mutex gives the same
// conditional-update guarantee as the SQL "WHERE status = ?" guard.
type IntentStore struct {
	mu      sync.Mutex
	intents map[string]*domain.PaymentIntent
	now     func() time.Time
}

func NewIntentStore() *IntentStore {
	return &IntentStore{intents: make(map[string]*domain.PaymentIntent), now: time.Now}
}

func (s *IntentStore) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.intents[intent.ID]; exists {
		return fmt.Errorf("payment intent %s already exists", intent.ID)
	}
	s.intents[intent.ID] = cloneIntent(intent)
	return nil
}

func (s *IntentStore) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, domain.ErrIntentNotFound
	}
	return cloneIntent(intent), nil
}

func (s *IntentStore) GetByProviderTransactionID(ctx context.Context, provider, transactionID string) (*domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, intent := range s.intents {
		if intent.PaymentMethod == provider && intent.ProviderTransactionID != "" && intent.ProviderTransactionID == transactionID {
			return cloneIntent(intent), nil
		}
	}
	return nil, domain.ErrIntentNotFound
}

func (s *IntentStore) TransitionStatus(ctx context.Context, id string, from, to domain.IntentStatus, update domain.IntentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return domain.ErrIntentNotFound
	}
	if intent.Status != from {
		return domain.ErrStaleTransition
	}
	intent.Status = to
	if update.ProviderTransactionID != "" && intent.ProviderTransactionID == "" {
		intent.ProviderTransactionID = update.ProviderTransactionID
	}
	if update.FailureReason != "" {
		intent.FailureReason = update.FailureReason
	}
	intent.UpdatedAt = s.now()
	return nil
}

func (s *IntentStore) AttachProviderTransaction(ctx context.Context, id, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return domain.ErrIntentNotFound
	}
	if intent.Status != domain.IntentProcessing || intent.ProviderTransactionID != "" {
		return domain.ErrStaleTransition
	}
	intent.ProviderTransactionID = transactionID
	intent.UpdatedAt = s.now()
	return nil
}

func (s *IntentStore) FindStaleProcessing(ctx context.Context, expiredBefore time.Time, limit int) ([]*domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.PaymentIntent
	for _, intent := range s.intents {
		if intent.Status == domain.IntentProcessing && intent.ExpiresAt.Before(expiredBefore) {
			out = append(out, cloneIntent(intent))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneIntent(in *domain.PaymentIntent) *domain.PaymentIntent {
	out := *in
	if in.Metadata != nil {
		out.Metadata = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

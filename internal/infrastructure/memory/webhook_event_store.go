package memory

import (
	"context"
	"sync"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

type WebhookEventStore struct {
	mu     sync.Mutex
	events map[string]*domain.WebhookEventRecord
	order  []string
}

func NewWebhookEventStore() *WebhookEventStore {
	return &WebhookEventStore{events: make(map[string]*domain.WebhookEventRecord)}
}

func (s *WebhookEventStore) Record(ctx context.Context, record *domain.WebhookEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.Provider + "/" + record.EventID
	if _, exists := s.events[key]; exists {
		return domain.ErrDuplicateWebhookEvent
	}
	copied := *record
	s.events[key] = &copied
	s.order = append(s.order, key)
	return nil
}

func (s *WebhookEventStore) Find(ctx context.Context, provider, eventID string) (*domain.WebhookEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.events[provider+"/"+eventID]
	if !ok {
		return nil, domain.ErrWebhookEventNotFound
	}
	copied := *record
	return &copied, nil
}

// All returns every record in insertion order.
func (s *WebhookEventStore) All() []domain.WebhookEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.WebhookEventRecord, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.events[key])
	}
	return out
}

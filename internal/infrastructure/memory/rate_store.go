package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

type RateStore struct {
	mu      sync.Mutex
	rates   map[string]domain.CurrencyRate
	history []domain.RateChange
	now     func() time.Time
}

func NewRateStore() *RateStore {
	return &RateStore{rates: make(map[string]domain.CurrencyRate), now: time.Now}
}

func rateKey(base, target string) string {
	return base + "_" + target
}

func (s *RateStore) GetRate(ctx context.Context, base, target string) (*domain.CurrencyRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate, ok := s.rates[rateKey(base, target)]
	if !ok {
		return nil, domain.ErrRateNotFound
	}
	return &rate, nil
}

func (s *RateStore) ListRates(ctx context.Context) ([]domain.CurrencyRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CurrencyRate, 0, len(s.rates))
	for _, rate := range s.rates {
		out = append(out, rate)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BaseCurrency != out[j].BaseCurrency {
			return out[i].BaseCurrency < out[j].BaseCurrency
		}
		return out[i].TargetCurrency < out[j].TargetCurrency
	})
	return out, nil
}

// ApplyRateUpdates holds the lock for the whole batch, so readers see either
// none or all of it. Pairs whose rate is unchanged produce no history row.
func (s *RateStore) ApplyRateUpdates(ctx context.Context, updates []domain.RateUpdate, actor, source string) ([]domain.RateChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var changes []domain.RateChange
	for _, u := range updates {
		key := rateKey(u.From, u.To)
		existing, exists := s.rates[key]
		if exists && existing.Rate.Equal(u.Rate) {
			continue
		}

		change := domain.RateChange{
			ID:             uint(len(s.history) + len(changes) + 1),
			BaseCurrency:   u.From,
			TargetCurrency: u.To,
			NewRate:        u.Rate,
			ChangedBy:      actor,
			Source:         source,
			CreatedAt:      now,
		}
		if exists {
			old := existing.Rate
			change.OldRate = &old
		}
		changes = append(changes, change)
	}

	for _, change := range changes {
		s.rates[rateKey(change.BaseCurrency, change.TargetCurrency)] = domain.CurrencyRate{
			BaseCurrency:   change.BaseCurrency,
			TargetCurrency: change.TargetCurrency,
			Rate:           change.NewRate,
			UpdatedAt:      now,
		}
	}
	s.history = append(s.history, changes...)
	return changes, nil
}

// ListHistory returns the newest changes first.
func (s *RateStore) ListHistory(ctx context.Context, limit int) ([]domain.RateChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.RateChange, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		out = append(out, s.history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

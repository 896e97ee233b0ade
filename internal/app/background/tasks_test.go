package background

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/memory"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/currency"
	"github.com/shopspring/decimal"
)

type fakeSource struct {
	rates map[string]map[string]string
	calls int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchRates(ctx context.Context, base string, targets []string) ([]domain.RateUpdate, error) {
	f.calls++
	quotes, ok := f.rates[base]
	if !ok {
		return nil, errors.New("base not published")
	}
	var out []domain.RateUpdate
	for _, t := range targets {
		if r, ok := quotes[t]; ok {
			out = append(out, domain.RateUpdate{From: base, To: t, Rate: decimal.RequireFromString(r)})
		}
	}
	return out, nil
}

func TestRefreshOnceCommitsAvailablePairs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRateStore()
	conv := currency.NewDefaultConverter(store, currency.Config{Supported: []string{"USD", "EUR", "XAF"}}, nil, nil)
	source := &fakeSource{rates: map[string]map[string]string{
		"EUR": {"USD": "1.08"},
		"USD": {"EUR": "0.92"},
	}}
	bt := &BackgroundTasks{Rates: conv, RateSource: source}
	bt.StartAll(ctx)

	if err := bt.RefreshOnce(ctx); err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
	if source.calls != 3 {
		t.Fatalf("expected one fetch per base, got %d", source.calls)
	}

	got := conv.Convert(ctx, decimal.NewFromInt(10), "EUR", "USD")
	if !got.Equal(decimal.RequireFromString("10.80")) {
		t.Fatalf("EUR->USD after refresh = %s", got)
	}
	history, _ := conv.GetRateHistory(ctx, 10)
	if len(history) != 2 || history[0].ChangedBy != "system:fake" {
		t.Fatalf("unexpected history %+v", history)
	}

	// Same quotes again: nothing changes, nothing is appended.
	if err := bt.RefreshOnce(ctx); err != nil {
		t.Fatalf("second RefreshOnce: %v", err)
	}
	history, _ = conv.GetRateHistory(ctx, 10)
	if len(history) != 2 {
		t.Fatalf("unchanged rates must not add history, got %d rows", len(history))
	}
}

func TestRefreshOnceAllFailures(t *testing.T) {
	conv := currency.NewDefaultConverter(memory.NewRateStore(), currency.Config{Supported: []string{"USD", "EUR"}}, nil, nil)
	bt := &BackgroundTasks{Rates: conv, RateSource: &fakeSource{}}
	bt.StartAll(context.Background())

	if err := bt.RefreshOnce(context.Background()); err == nil {
		t.Fatal("expected an error when no base could be fetched")
	}
}

type countingSweeper struct{ calls chan struct{} }

func (s *countingSweeper) SweepStaleProcessing(ctx context.Context) (int, error) {
	s.calls <- struct{}{}
	return 1, nil
}

func TestSweepLoopStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := &countingSweeper{calls: make(chan struct{}, 10)}
	bt := &BackgroundTasks{Sweeper: sweeper, SweepInterval: 5 * time.Millisecond}
	bt.StartAll(ctx)

	select {
	case <-sweeper.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()
}

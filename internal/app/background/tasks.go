package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

type StaleSweeper interface {
	SweepStaleProcessing(ctx context.Context) (int, error)
}

type RateRefresher interface {
	SupportedCurrencies() []string
	RefreshRates(ctx context.Context, batch []domain.RateUpdate, provider string) ([]domain.RateChange, error)
}

// BackgroundTasks runs the periodic jobs. A zero interval disables its job.
type BackgroundTasks struct {
	Sweeper         StaleSweeper
	SweepInterval   time.Duration
	Rates           RateRefresher
	RateSource      domain.ExchangeRateProvider
	RefreshInterval time.Duration
	Logger          *slog.Logger
}

func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	if bt.Logger == nil {
		bt.Logger = slog.Default()
	}
	if bt.Sweeper != nil && bt.SweepInterval > 0 {
		go bt.every(ctx, bt.SweepInterval, bt.sweepOnce)
	}
	if bt.Rates != nil && bt.RateSource != nil && bt.RefreshInterval > 0 {
		go bt.every(ctx, bt.RefreshInterval, bt.RefreshOnce)
	}
}

func (bt *BackgroundTasks) every(ctx context.Context, interval time.Duration, job func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
				bt.Logger.Error("background job failed", "error", err)
			}
		}
	}
}

func (bt *BackgroundTasks) sweepOnce(ctx context.Context) error {
	swept, err := bt.Sweeper.SweepStaleProcessing(ctx)
	if err != nil {
		return fmt.Errorf("stale processing sweep: %w", err)
	}
	if swept > 0 {
		bt.Logger.Info("stale processing intents failed", "count", swept)
	}
	return nil
}

// RefreshOnce pulls every supported pair from the rate source and commits
// them as one batch. A base the source cannot serve is skipped.
func (bt *BackgroundTasks) RefreshOnce(ctx context.Context) error {
	supported := bt.Rates.SupportedCurrencies()

	var batch []domain.RateUpdate
	var failures int
	for _, base := range supported {
		targets := make([]string, 0, len(supported)-1)
		for _, code := range supported {
			if code != base {
				targets = append(targets, code)
			}
		}

		updates, err := bt.RateSource.FetchRates(ctx, base, targets)
		if err != nil {
			failures++
			bt.Logger.Warn("rate source fetch failed", "source", bt.RateSource.Name(), "base", base, "error", err)
			continue
		}
		batch = append(batch, updates...)
	}

	if len(batch) == 0 {
		if failures > 0 {
			return fmt.Errorf("rate refresh from %s: every fetch failed", bt.RateSource.Name())
		}
		return nil
	}

	changes, err := bt.Rates.RefreshRates(ctx, batch, bt.RateSource.Name())
	if err != nil {
		return fmt.Errorf("rate refresh from %s: %w", bt.RateSource.Name(), err)
	}
	bt.Logger.Info("currency rates refreshed", "source", bt.RateSource.Name(), "pairs", len(batch), "changed", len(changes))
	return nil
}

package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/metrics"
	"github.com/shopspring/decimal"
)

// Converter never fails a conversion. A pair missing from the cache and the
// rate store is served from the fallback table: payment flows prefer a
// slightly stale amount over an outage. Each fallback use is logged at WARN
// and counted, so callers reading reports should treat such amounts as estimates.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal
	ConvertToAll(ctx context.Context, amount decimal.Decimal, from string) map[string]decimal.Decimal
	IsSupported(code string) bool
	SupportedCurrencies() []string

	UpdateRates(ctx context.Context, batch []domain.RateUpdate, actor string) ([]domain.RateChange, error)
	RefreshRates(ctx context.Context, batch []domain.RateUpdate, provider string) ([]domain.RateChange, error)
	GetRates(ctx context.Context) ([]domain.CurrencyRate, error)
	GetRateHistory(ctx context.Context, limit int) ([]domain.RateChange, error)
}

type Config struct {
	Supported []string
	CacheTTL  time.Duration
	// Fallback defaults to DefaultFallbackTable when nil.
	Fallback *FallbackTable
}

type DefaultConverter struct {
	repo      domain.RateRepository
	cache     *RateCache
	fallback  *FallbackTable
	supported []string
	known     map[string]bool
	Metrics   *metrics.PaymentMetrics
	logger    *slog.Logger
}

func NewDefaultConverter(repo domain.RateRepository, cfg Config, m *metrics.PaymentMetrics, logger *slog.Logger) *DefaultConverter {
	if logger == nil {
		logger = slog.Default()
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = DefaultFallbackTable()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &DefaultConverter{
		repo:     repo,
		cache:    NewRateCache(ttl),
		fallback: fallback,
		known:    make(map[string]bool, len(cfg.Supported)),
		Metrics:  m,
		logger:   logger,
	}
	for _, code := range cfg.Supported {
		code = domain.NormalizeCurrency(code)
		if code == "" || c.known[code] {
			continue
		}
		c.known[code] = true
		c.supported = append(c.supported, code)
	}
	return c
}

func (c *DefaultConverter) IsSupported(code string) bool {
	return c.known[domain.NormalizeCurrency(code)]
}

func (c *DefaultConverter) SupportedCurrencies() []string {
	out := make([]string, len(c.supported))
	copy(out, c.supported)
	return out
}

// Convert returns amount unchanged when from == to. Otherwise the result is
// rounded to the minor units of the target currency.
func (c *DefaultConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal {
	from = domain.NormalizeCurrency(from)
	to = domain.NormalizeCurrency(to)
	if from == to {
		return amount
	}

	rate := c.resolveRate(ctx, from, to)
	return amount.Mul(rate).Round(domain.MinorUnits(to))
}

func (c *DefaultConverter) ConvertToAll(ctx context.Context, amount decimal.Decimal, from string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.supported))
	for _, to := range c.supported {
		out[to] = c.Convert(ctx, amount, from, to)
	}
	return out
}

func (c *DefaultConverter) resolveRate(ctx context.Context, from, to string) decimal.Decimal {
	generation := c.cache.Generation()
	if rate, ok := c.cache.Get(from, to); ok {
		return rate
	}

	stored, err := c.repo.GetRate(ctx, from, to)
	if err == nil {
		c.cache.Set(from, to, stored.Rate, generation)
		return stored.Rate
	}
	if !errors.Is(err, domain.ErrRateNotFound) {
		c.logger.Warn("rate store lookup failed", "from", from, "to", to, "error", err)
	}

	rate, found := c.fallback.Resolve(from, to)
	if found {
		c.logger.Warn("using fallback exchange rate", "from", from, "to", to, "rate", rate.String())
	} else {
		c.logger.Error("no fallback exchange rate, converting at par", "from", from, "to", to)
	}
	if c.Metrics != nil {
		c.Metrics.RecordCurrencyFallback(from, to)
	}
	return rate
}

func (c *DefaultConverter) UpdateRates(ctx context.Context, batch []domain.RateUpdate, actor string) ([]domain.RateChange, error) {
	return c.applyRates(ctx, batch, actor, domain.RateSourceAdmin)
}

func (c *DefaultConverter) RefreshRates(ctx context.Context, batch []domain.RateUpdate, provider string) ([]domain.RateChange, error) {
	return c.applyRates(ctx, batch, "system:"+provider, domain.RateSourceRefresh)
}

func (c *DefaultConverter) applyRates(ctx context.Context, batch []domain.RateUpdate, actor, source string) ([]domain.RateChange, error) {
	normalized, err := validateBatch(batch)
	if err != nil {
		return nil, err
	}

	changes, err := c.repo.ApplyRateUpdates(ctx, normalized, actor, source)
	if err != nil {
		return nil, fmt.Errorf("failed to apply rate updates: %w", err)
	}

	// Only after the commit: a reader must never see the cache emptied while
	// the store still holds the old rate.
	c.cache.Invalidate()

	if c.Metrics != nil {
		c.Metrics.RecordRateUpdates(source, len(changes))
	}
	c.logger.Info("currency rates updated", "source", source, "actor", actor, "pairs", len(normalized), "changes", len(changes))
	return changes, nil
}

func validateBatch(batch []domain.RateUpdate) ([]domain.RateUpdate, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrInvalidRateUpdate)
	}

	seen := make(map[string]bool, len(batch))
	out := make([]domain.RateUpdate, 0, len(batch))
	for _, u := range batch {
		from := domain.NormalizeCurrency(u.From)
		to := domain.NormalizeCurrency(u.To)
		if !validCode(from) || !validCode(to) {
			return nil, fmt.Errorf("%w: invalid currency pair %q/%q", domain.ErrInvalidRateUpdate, u.From, u.To)
		}
		if from == to {
			return nil, fmt.Errorf("%w: %s/%s is an identity pair", domain.ErrInvalidRateUpdate, from, to)
		}
		if !u.Rate.IsPositive() {
			return nil, fmt.Errorf("%w: rate for %s/%s must be positive", domain.ErrInvalidRateUpdate, from, to)
		}
		key := cacheKey(from, to)
		if seen[key] {
			return nil, fmt.Errorf("%w: %s/%s appears twice", domain.ErrInvalidRateUpdate, from, to)
		}
		seen[key] = true
		out = append(out, domain.RateUpdate{From: from, To: to, Rate: u.Rate})
	}
	return out, nil
}

func validCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (c *DefaultConverter) GetRates(ctx context.Context) ([]domain.CurrencyRate, error) {
	return c.repo.ListRates(ctx)
}

func (c *DefaultConverter) GetRateHistory(ctx context.Context, limit int) ([]domain.RateChange, error) {
	return c.repo.ListHistory(ctx, limit)
}

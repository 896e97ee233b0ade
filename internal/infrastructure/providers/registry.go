package providers

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

// Registry maps a payment method name to its adapter. Unregistered names
// are unknown payment methods.
type Registry struct {
	providers map[string]domain.PaymentProvider
}

func NewEmptyRegistry() *Registry {
	return &Registry{providers: make(map[string]domain.PaymentProvider)}
}

// NewRegistry builds the enabled adapters. An enabled provider without its
// credentials is a configuration error.
func NewRegistry(cfg config.Providers, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewEmptyRegistry()

	entries := []struct {
		name  string
		cfg   config.ProviderConfig
		build func(config.ProviderConfig) domain.PaymentProvider
	}{
		{FlutterwaveName, cfg.Flutterwave, func(c config.ProviderConfig) domain.PaymentProvider { return NewFlutterwave(c) }},
		{PaystackName, cfg.Paystack, func(c config.ProviderConfig) domain.PaymentProvider { return NewPaystack(c) }},
		{StripeName, cfg.Stripe, func(c config.ProviderConfig) domain.PaymentProvider { return NewStripe(c) }},
		{MobileMoneyName, cfg.MobileMoney, func(c config.ProviderConfig) domain.PaymentProvider { return NewMobileMoney(c) }},
	}

	for _, e := range entries {
		if !e.cfg.Enabled {
			continue
		}
		if e.cfg.SecretKey == "" {
			return nil, fmt.Errorf("%w: %s has no secret key", domain.ErrProviderNotConfigured, e.name)
		}
		if e.cfg.WebhookSecret == "" && e.name != PaystackName {
			return nil, fmt.Errorf("%w: %s has no webhook secret", domain.ErrProviderNotConfigured, e.name)
		}
		r.Register(e.build(e.cfg))
		logger.Info("payment provider enabled", "provider", e.name)
	}
	return r, nil
}

func (r *Registry) Register(p domain.PaymentProvider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (domain.PaymentProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

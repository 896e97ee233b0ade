package setup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/providers"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/ratelimit"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/webhook"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/currency"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/ledger"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/payment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Dependencies struct {
	Config       *config.PaymentConfig
	DB           *gorm.DB
	Registry     *prometheus.Registry
	Metrics      *metrics.PaymentMetrics
	Publisher    *kafka.PaymentEventPublisher
	Redis        *redis.Client
	Limiter      ratelimit.Limiter
	Repositories *Repositories
	Providers    *providers.Registry
	Converter    *currency.DefaultConverter
	Ledger       *ledger.DefaultLedger
	Payments     *payment.DefaultPaymentUsecase
}

type Repositories struct {
	IntentRepo       domain.IntentRepository
	TransactionRepo  domain.TransactionRepository
	RateRepo         domain.RateRepository
	WebhookEventRepo domain.WebhookEventRepository
}

// InitializeDependencies wires everything behind the transports. Kafka and
// Redis are optional: without them events are not published and the forgery
// limiter is kept in process memory.
func InitializeDependencies(ctx context.Context, cfg *config.PaymentConfig, db *gorm.DB, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPaymentMetrics(registry)

	repos := &Repositories{
		IntentRepo:       repository.NewDefaultIntentRepository(db),
		TransactionRepo:  repository.NewDefaultTransactionRepository(db),
		RateRepo:         repository.NewDefaultRateRepository(db),
		WebhookEventRepo: repository.NewDefaultWebhookEventRepository(db),
	}

	providerRegistry, err := providers.NewRegistry(cfg.Providers, logger)
	if err != nil {
		return nil, fmt.Errorf("payment providers: %w", err)
	}

	converter := currency.NewDefaultConverter(repos.RateRepo, currency.Config{
		Supported: cfg.Currency.Supported,
		CacheTTL:  cfg.Currency.CacheTTL,
	}, m, logger)
	paymentLedger := ledger.NewDefaultLedger(repos.TransactionRepo, converter, logger)

	deps := &Dependencies{
		Config:       cfg,
		DB:           db,
		Registry:     registry,
		Metrics:      m,
		Repositories: repos,
		Providers:    providerRegistry,
		Converter:    converter,
		Ledger:       paymentLedger,
	}

	paymentDeps := payment.Deps{
		Intents:       repos.IntentRepo,
		WebhookEvents: repos.WebhookEventRepo,
		Providers:     providerRegistry,
		Verifier:      webhook.NewVerifier(providerRegistry),
		Ledger:        paymentLedger,
		Currencies:    converter,
		Metrics:       m,
		Logger:        logger,
	}

	if cfg.KafkaService.Host != "" {
		publisher, err := initPaymentPublisher(cfg)
		if err != nil {
			return nil, fmt.Errorf("payment publisher: %w", err)
		}
		deps.Publisher = publisher
		paymentDeps.Publisher = publisher
	} else {
		logger.Warn("kafka is not configured, payment events will not be published")
	}

	deps.Limiter, deps.Redis = initLimiter(ctx, cfg, logger)

	deps.Payments, err = payment.NewDefaultPaymentUsecase(paymentDeps, payment.Options{
		IntentTTL:       cfg.Payments.IntentTTL,
		ProviderTimeout: cfg.Payments.ProviderTimeout,
		SettlementGrace: cfg.Payments.SettlementGrace,
	})
	if err != nil {
		return nil, fmt.Errorf("payment usecase: %w", err)
	}
	return deps, nil
}

func initPaymentPublisher(cfg *config.PaymentConfig) (*kafka.PaymentEventPublisher, error) {
	config := kafka.KafkaConfig{
		Brokers:    []string{fmt.Sprintf("%s:%s", cfg.KafkaService.Host, cfg.KafkaService.Port)},
		Topic:      cfg.KafkaService.Topic,
		Username:   cfg.KafkaService.Username,
		Password:   cfg.KafkaService.Password,
		Mechanism:  cfg.KafkaService.Mechanism,
		TLSEnabled: cfg.KafkaService.TLSEnabled,
	}
	return kafka.NewPaymentEventPublisher(config)
}

func initLimiter(ctx context.Context, cfg *config.PaymentConfig, logger *slog.Logger) (ratelimit.Limiter, *redis.Client) {
	if cfg.Redis.Addr == "" {
		return ratelimit.NewMemoryLimiter(cfg.Webhooks.FailureLimit, cfg.Webhooks.FailureWindow), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory webhook limiter", "addr", cfg.Redis.Addr, "error", err)
		_ = rdb.Close()
		return ratelimit.NewMemoryLimiter(cfg.Webhooks.FailureLimit, cfg.Webhooks.FailureWindow), nil
	}
	return ratelimit.NewRedisLimiter(rdb, cfg.Webhooks.FailureLimit, cfg.Webhooks.FailureWindow), rdb
}

// Ping backs the health endpoints.
func (d *Dependencies) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Dependencies) Close(logger *slog.Logger) {
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			logger.Error("failed to close kafka publisher", "error", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}
	if sqlDB, err := d.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

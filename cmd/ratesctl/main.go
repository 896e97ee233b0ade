package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/currency"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var Version = "dev"

type rateService interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal
	ConvertToAll(ctx context.Context, amount decimal.Decimal, from string) map[string]decimal.Decimal
	UpdateRates(ctx context.Context, batch []domain.RateUpdate, actor string) ([]domain.RateChange, error)
	GetRates(ctx context.Context) ([]domain.CurrencyRate, error)
	GetRateHistory(ctx context.Context, limit int) ([]domain.RateChange, error)
}

// opener builds the rate service for one command run; close releases it.
type opener func(configPath string) (svc rateService, close func(), err error)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(openFromConfig).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ratesctl",
		Short:         "Inspect and administer payment currency rates",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("PAYMENT_CONFIG_PATH"), "Path to the service config file")

	withService := func(run func(cmd *cobra.Command, svc rateService, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := open(configPath)
			if err != nil {
				return err
			}
			defer closeFn()
			return run(cmd, svc, args)
		}
	}

	rootCmd.AddCommand(listCmd(withService))
	rootCmd.AddCommand(historyCmd(withService))
	rootCmd.AddCommand(setCmd(withService))
	rootCmd.AddCommand(convertCmd(withService))
	return rootCmd
}

func openFromConfig(configPath string) (rateService, func(), error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("config path is required (--config or PAYMENT_CONFIG_PATH)")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := postgres.Open(cfg.PaymentDB.Dsn)
	if err != nil {
		return nil, nil, err
	}

	// Admin output goes to stdout; keep library logs on stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc := currency.NewDefaultConverter(repository.NewDefaultRateRepository(db), currency.Config{
		Supported: cfg.Currency.Supported,
		CacheTTL:  cfg.Currency.CacheTTL,
	}, nil, logger)

	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return svc, closeFn, nil
}

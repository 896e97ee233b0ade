package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/app/background"
	"github.com/LavaJover/shvark-payment-service/internal/app/setup"
	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/delivery/grpcapi"
	"github.com/LavaJover/shvark-payment-service/internal/delivery/http/handlers"
	exchangeproviders "github.com/LavaJover/shvark-payment-service/internal/infrastructure/exchange_providers"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/logger"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/migrate"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	// Reading config
	cfg := config.MustLoad()

	l := logger.New(cfg.LogConfig)
	slog.SetDefault(l)
	tracing.InstallPropagator()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init database
	db := postgres.MustInitDB(cfg)
	if err := migrate.RunMigrations(db, cfg.PaymentDB.MigrationsPath); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	deps, err := setup.InitializeDependencies(ctx, cfg, db, l)
	if err != nil {
		log.Fatalf("failed to init dependencies: %v", err)
	}
	defer deps.Close(l)

	// gRPC
	grpcServer := grpc.NewServer()
	grpcapi.RegisterPaymentServiceServer(grpcServer, grpcapi.NewPaymentHandler(deps.Payments, deps.Converter))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%s", cfg.GRPCServer.Host, cfg.GRPCServer.Port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	// HTTP: webhooks, metrics, health
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := handlers.NewRouter(handlers.RouterDeps{
		Logger:         l,
		Webhooks:       handlers.NewWebhookHandler(l, deps.Payments, deps.Limiter),
		Gatherer:       deps.Registry,
		Checks:         map[string]handlers.HealthCheck{"db": deps.Ping},
		TrustedProxies: cfg.HTTPServer.TrustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to build http router: %v", err)
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	tasks := &background.BackgroundTasks{
		Sweeper:         deps.Payments,
		SweepInterval:   cfg.Payments.SweepInterval,
		Rates:           deps.Converter,
		RateSource:      exchangeproviders.NewFrankfurterProvider(cfg.Currency.RefreshURL),
		RefreshInterval: cfg.Currency.RefreshInterval,
		Logger:          l,
	}
	tasks.StartAll(ctx)

	errCh := make(chan error, 2)
	go func() {
		l.Info("gRPC server started", "addr", lis.Addr().String())
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		l.Info("HTTP server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		l.Info("shutting down")
	case err := <-errCh:
		l.Error("server stopped", "error", err)
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
}

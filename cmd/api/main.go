package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brickmill/storefront-backend/api/routes"
	"github.com/brickmill/storefront-backend/internal/binder"
	cartsvc "github.com/brickmill/storefront-backend/internal/cart"
	checkoutsvc "github.com/brickmill/storefront-backend/internal/checkout"
	"github.com/brickmill/storefront-backend/internal/customers"
	paymentsvc "github.com/brickmill/storefront-backend/internal/payments"
	"github.com/brickmill/storefront-backend/internal/products"
	proofsvc "github.com/brickmill/storefront-backend/internal/proofs"
	stripewebhook "github.com/brickmill/storefront-backend/internal/webhooks/stripe"
	"github.com/brickmill/storefront-backend/pkg/config"
	"github.com/brickmill/storefront-backend/pkg/db"
	"github.com/brickmill/storefront-backend/pkg/logger"
	"github.com/brickmill/storefront-backend/pkg/metrics"
	"github.com/brickmill/storefront-backend/pkg/migrate"
	"github.com/brickmill/storefront-backend/pkg/outbox"
	"github.com/brickmill/storefront-backend/pkg/redis"
	"github.com/brickmill/storefront-backend/pkg/storage/gcs"
	"github.com/brickmill/storefront-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs client", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	cartRepo := cartsvc.NewRepository(gormDB)
	productRepo := products.NewRepository(gormDB)
	customerRepo := customers.NewRepository(gormDB)
	orderRepo := checkoutsvc.NewRepository(gormDB)
	paymentRepo := paymentsvc.NewRepository(gormDB)
	proofRepo := proofsvc.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	cartService, err := cartsvc.NewService(cartRepo, productRepo, dbClient)
	mustService(logg, "cart service", err)

	binderService, err := binder.NewService(cartRepo, customerRepo, dbClient)
	mustService(logg, "session binder", err)

	checkoutService, err := checkoutsvc.NewService(orderRepo, cartRepo, productRepo, customerRepo, outboxService, dbClient)
	mustService(logg, "checkout service", err)

	paymentService, err := paymentsvc.NewService(paymentRepo, orderRepo, stripeClient, cfg.Stripe, logg)
	mustService(logg, "payment service", err)

	proofService, err := proofsvc.NewService(proofsvc.ServiceParams{
		ProofRepo:         proofRepo,
		OrderRepo:         orderRepo,
		CartRepo:          cartRepo,
		ObjectStore:       gcsClient,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		MaxUploadMB:       cfg.Proof.MaxUploadMB,
		Logger:            logg,
	})
	mustService(logg, "proof service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		PaymentRepo:       paymentRepo,
		OrderRepo:         orderRepo,
		CartRepo:          cartRepo,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	mustService(logg, "stripe webhook service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
	mustService(logg, "webhook idempotency guard", err)

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gcsClient,
			cartService,
			binderService,
			checkoutService,
			paymentService,
			proofService,
			stripeClient,
			webhookService,
			webhookGuard,
			webhookMetrics,
		),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func mustService(logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+name, err)
		os.Exit(1)
	}
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brickmill/storefront-backend/api/controllers"
	webhookcontrollers "github.com/brickmill/storefront-backend/api/controllers/webhooks"
	"github.com/brickmill/storefront-backend/api/middleware"
	"github.com/brickmill/storefront-backend/internal/binder"
	"github.com/brickmill/storefront-backend/internal/cart"
	checkoutsvc "github.com/brickmill/storefront-backend/internal/checkout"
	"github.com/brickmill/storefront-backend/internal/payments"
	"github.com/brickmill/storefront-backend/internal/proofs"
	stripewebhook "github.com/brickmill/storefront-backend/internal/webhooks/stripe"
	"github.com/brickmill/storefront-backend/pkg/config"
	"github.com/brickmill/storefront-backend/pkg/db"
	"github.com/brickmill/storefront-backend/pkg/logger"
	"github.com/brickmill/storefront-backend/pkg/metrics"
	"github.com/brickmill/storefront-backend/pkg/redis"
	"github.com/brickmill/storefront-backend/pkg/storage/gcs"
	"github.com/brickmill/storefront-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gcsClient gcs.Pinger,
	cartService cart.Service,
	binderService binder.Service,
	checkoutService checkoutsvc.Service,
	paymentService payments.Service,
	proofService proofs.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	bindPolicy := middleware.NewRateLimitPolicy(
		"bind",
		cfg.BindRateLimit.Window,
		cfg.BindRateLimit.IPLimit,
		cfg.BindRateLimit.EmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "postgres", Pinger: dbP},
			controllers.Dependency{Name: "redis", Pinger: redisClient},
			controllers.Dependency{Name: "gcs", Pinger: gcsClient},
		))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, webhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CartToken(cfg.Cart))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, cfg.Cart, logg))
			r.Post("/items", controllers.CartAddItem(cartService, cfg.Cart, logg))
			r.Put("/items/{productID}", controllers.CartSetItemQuantity(cartService, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(cartService, logg))
		})

		r.With(middleware.RateLimit(bindPolicy, redisClient, logg)).
			Post("/session/bind", controllers.SessionBind(binderService, cfg.Cart, logg))

		r.Post("/checkout", controllers.CheckoutCreate(checkoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(checkoutService, logg))
			r.Get("/ref/{reference}", controllers.OrderGetByReference(checkoutService, logg))
			r.Get("/{orderID}", controllers.OrderGet(checkoutService, logg))
			r.Post("/{orderID}/payment-session", controllers.PaymentSessionCreate(paymentService, logg))
			r.Get("/{orderID}/payments", controllers.PaymentsList(paymentService, logg))
			r.Post("/{orderID}/proofs", controllers.ProofSubmit(proofService, cfg.Proof, logg))
			r.Get("/{orderID}/proofs", controllers.ProofsListForOrder(proofService, logg))
		})

		r.Get("/proofs/pending", controllers.ProofsPending(proofService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/orders/{orderID}/mark-paid", controllers.AdminOrderMarkPaid(proofService, logg))
	})

	return r
}

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brickmill/storefront-backend/internal/binder"
	"github.com/brickmill/storefront-backend/internal/cart"
	"github.com/brickmill/storefront-backend/internal/payments"
	"github.com/brickmill/storefront-backend/internal/proofs"
	"github.com/brickmill/storefront-backend/pkg/config"
	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		App:  config.AppConfig{Env: "test"},
		Cart: config.CartConfig{CookieName: "sf_cart", CookieTTL: time.Hour},
	}
	return NewRouter(
		cfg,
		nil,
		nil,
		nil,
		nil,
		stubCartService{},
		stubBinderService{},
		stubCheckoutService{},
		stubPaymentService{},
		stubProofService{},
		nil,
		nil,
		nil,
		nil,
	)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Storefront-Env") != "test" {
		t.Fatalf("expected env header on health response")
	}
}

func TestCartGetMintsCookieForNewShopper(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	cookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "sf_cart=") {
		t.Fatalf("expected cart cookie to be set, got %q", cookie)
	}
}

func TestSessionBindRejectsBadJSON(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/bind", strings.NewReader(`{"email":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminMarkPaidRejectsMalformedOrderID(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/not-a-uuid/mark-paid", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

type stubCartService struct{}

func (stubCartService) view() *cart.View {
	return &cart.View{Cart: &models.Cart{ID: uuid.New(), Token: "sfct_stub_token"}, Totals: &cart.Totals{}}
}

func (s stubCartService) GetOrCreate(ctx context.Context, token string) (*cart.View, error) {
	return s.view(), nil
}

func (s stubCartService) Get(ctx context.Context, token string) (*cart.View, error) {
	return s.view(), nil
}

func (s stubCartService) AddItem(ctx context.Context, token string, ref cart.ProductRef, quantity int) (*cart.View, error) {
	return s.view(), nil
}

func (s stubCartService) SetItemQuantity(ctx context.Context, token string, productID uuid.UUID, quantity int) (*cart.View, error) {
	return s.view(), nil
}

func (s stubCartService) RemoveItem(ctx context.Context, token string, productID uuid.UUID) (*cart.View, error) {
	return s.view(), nil
}

type stubBinderService struct{}

func (stubBinderService) Bind(ctx context.Context, oldToken, email string) (*binder.Result, error) {
	return &binder.Result{Token: "sfct_bound_token", Cart: &models.Cart{ID: uuid.New()}}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) CreateOrder(ctx context.Context, token, email string) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), Reference: "SF-STUB0001"}, nil
}

func (stubCheckoutService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}

func (stubCheckoutService) GetByReference(ctx context.Context, reference string) (*models.Order, error) {
	return &models.Order{Reference: reference}, nil
}

func (stubCheckoutService) ListForCustomer(ctx context.Context, email string, limit int) ([]models.Order, error) {
	return nil, nil
}

type stubPaymentService struct{}

func (stubPaymentService) CreateCheckoutSession(ctx context.Context, orderID uuid.UUID) (*payments.Session, error) {
	return &payments.Session{ProviderSessionID: "cs_stub"}, nil
}

func (stubPaymentService) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	return nil, nil
}

type stubProofService struct{}

func (stubProofService) Submit(ctx context.Context, params proofs.SubmitParams) (*models.PaymentProof, error) {
	return &models.PaymentProof{ID: uuid.New()}, nil
}

func (stubProofService) PendingCount(ctx context.Context, email string) (int64, error) {
	return 0, nil
}

func (stubProofService) ListPending(ctx context.Context, email string, limit int) ([]models.Order, error) {
	return nil, nil
}

func (stubProofService) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentProof, error) {
	return nil, nil
}

func (stubProofService) MarkPaid(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod, markedBy string) (*models.Order, error) {
	return &models.Order{ID: orderID, Status: enums.OrderStatusPaid}, nil
}

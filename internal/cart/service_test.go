package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brickmill/storefront-backend/internal/products"
	"github.com/brickmill/storefront-backend/pkg/carttoken"
	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
)

func TestGetOrCreateMintsCartForUnknownToken(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{}
	svc := newTestService(t, repo, &stubProductRepo{})

	view, err := svc.GetOrCreate(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Cart == nil || view.Cart.Token == "" {
		t.Fatal("expected a cart with a minted token")
	}
	if !carttoken.Valid(view.Cart.Token) {
		t.Fatalf("minted token is not valid: %q", view.Cart.Token)
	}
	if view.Totals.TotalCents != 0 {
		t.Fatalf("fresh cart should have zero total, got %d", view.Totals.TotalCents)
	}
}

func TestGetOrCreateReturnsExistingCart(t *testing.T) {
	t.Parallel()

	token := mustMint(t)
	existing := &models.Cart{ID: uuid.New(), Token: token, Status: enums.CartStatusActive}
	repo := &stubCartRepo{byToken: existing}
	svc := newTestService(t, repo, &stubProductRepo{})

	view, err := svc.GetOrCreate(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Cart.ID != existing.ID {
		t.Fatal("expected the existing cart back")
	}
	if repo.created != nil {
		t.Fatal("should not create a new cart when the token resolves")
	}
}

func TestAddItemRejectsBadQuantity(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubCartRepo{}, &stubProductRepo{})

	for _, qty := range []int{0, -1, maxLineQuantity + 1} {
		_, err := svc.AddItem(context.Background(), mustMint(t), ProductRef{ID: uuid.New()}, qty)
		if err == nil {
			t.Fatalf("expected error for quantity %d", qty)
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("unexpected error code for quantity %d: %v", qty, err)
		}
	}
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	t.Parallel()

	token := mustMint(t)
	cart := &models.Cart{ID: uuid.New(), Token: token, Status: enums.CartStatusActive}
	product := &models.Product{ID: uuid.New(), Active: false, UnitPriceCents: 100, Currency: enums.CurrencyUSD}

	svc := newTestService(t, &stubCartRepo{byToken: cart}, &stubProductRepo{product: product})

	_, err := svc.AddItem(context.Background(), token, ProductRef{ID: product.ID}, 1)
	if err == nil {
		t.Fatal("expected error for inactive product")
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestAddItemRejectsCurrencyMismatch(t *testing.T) {
	t.Parallel()

	token := mustMint(t)
	cart := &models.Cart{
		ID:     uuid.New(),
		Token:  token,
		Status: enums.CartStatusActive,
		Items: []models.CartItem{
			{ProductID: uuid.New(), Quantity: 1, UnitPriceCents: 500, Currency: enums.CurrencyUSD},
		},
	}
	product := &models.Product{ID: uuid.New(), Active: true, UnitPriceCents: 900, Currency: enums.CurrencyEUR}

	svc := newTestService(t, &stubCartRepo{byToken: cart}, &stubProductRepo{product: product})

	_, err := svc.AddItem(context.Background(), token, ProductRef{ID: product.ID}, 1)
	if err == nil {
		t.Fatal("expected error for currency mismatch")
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestAddItemSnapshotsProductPrice(t *testing.T) {
	t.Parallel()

	token := mustMint(t)
	cart := &models.Cart{ID: uuid.New(), Token: token, Status: enums.CartStatusActive}
	product := &models.Product{ID: uuid.New(), Active: true, UnitPriceCents: 4200, Currency: enums.CurrencyUSD}
	repo := &stubCartRepo{byToken: cart}

	svc := newTestService(t, repo, &stubProductRepo{product: product})

	if _, err := svc.AddItem(context.Background(), token, ProductRef{ID: product.ID}, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.upserted == nil {
		t.Fatal("expected an upserted item")
	}
	if repo.upserted.UnitPriceCents != 4200 || repo.upserted.Currency != enums.CurrencyUSD {
		t.Fatalf("item did not snapshot product price: %+v", repo.upserted)
	}
	if repo.upserted.Quantity != 2 {
		t.Fatalf("unexpected quantity: %d", repo.upserted.Quantity)
	}
}

func TestAddItemResolvesProductBySlug(t *testing.T) {
	t.Parallel()

	token := mustMint(t)
	cart := &models.Cart{ID: uuid.New(), Token: token, Status: enums.CartStatusActive}
	product := &models.Product{ID: uuid.New(), Slug: "blue-hoodie", Active: true, UnitPriceCents: 2500, Currency: enums.CurrencyUSD}
	repo := &stubCartRepo{byToken: cart}

	svc := newTestService(t, repo, &stubProductRepo{product: product})

	if _, err := svc.AddItem(context.Background(), token, ProductRef{Slug: "blue-hoodie"}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.upserted == nil || repo.upserted.ProductID != product.ID {
		t.Fatalf("slug did not resolve to the product: %+v", repo.upserted)
	}
}

func TestAddItemRequiresProductReference(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubCartRepo{}, &stubProductRepo{})

	_, err := svc.AddItem(context.Background(), mustMint(t), ProductRef{}, 1)
	if err == nil {
		t.Fatal("expected error for empty product reference")
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestSetItemQuantityZeroRemovesLine(t *testing.T) {
	t.Parallel()

	token := mustMint(t)
	productID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), Token: token, Status: enums.CartStatusActive}
	repo := &stubCartRepo{byToken: cart}

	svc := newTestService(t, repo, &stubProductRepo{})

	if _, err := svc.SetItemQuantity(context.Background(), token, productID, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.removedProduct != productID {
		t.Fatal("expected the line to be removed")
	}
}

func TestGetRequiresValidToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubCartRepo{}, &stubProductRepo{})

	_, err := svc.Get(context.Background(), "not-a-token")
	if err == nil {
		t.Fatal("expected error for malformed token")
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func newTestService(t *testing.T, repo Repository, productRepo products.Repository) Service {
	t.Helper()
	svc, err := NewService(repo, productRepo, stubTxRunner{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func mustMint(t *testing.T) string {
	t.Helper()
	token, err := carttoken.Mint()
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

type stubCartRepo struct {
	byToken        *models.Cart
	created        *models.Cart
	upserted       *models.CartItem
	removedProduct uuid.UUID
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCartRepo) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	s.created = cart
	return cart, nil
}

func (s *stubCartRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	if s.byToken != nil && s.byToken.ID == id {
		return s.byToken, nil
	}
	if s.created != nil && s.created.ID == id {
		return s.created, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

func (s *stubCartRepo) FindActiveByToken(ctx context.Context, token string) (*models.Cart, error) {
	if s.byToken != nil && s.byToken.Token == token {
		return s.byToken, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

func (s *stubCartRepo) FindActiveByEmail(ctx context.Context, email string) (*models.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

func (s *stubCartRepo) UpsertItem(ctx context.Context, item *models.CartItem) error {
	s.upserted = item
	return nil
}

func (s *stubCartRepo) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	return nil
}

func (s *stubCartRepo) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error {
	s.removedProduct = productID
	return nil
}

func (s *stubCartRepo) ClearItems(ctx context.Context, cartID uuid.UUID) error { return nil }

func (s *stubCartRepo) UpdateToken(ctx context.Context, cartID uuid.UUID, token string) error {
	return nil
}

func (s *stubCartRepo) SetCustomerEmail(ctx context.Context, cartID uuid.UUID, email string) error {
	return nil
}

func (s *stubCartRepo) MarkConverted(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	return nil
}

func (s *stubCartRepo) InsertMerge(ctx context.Context, merge *models.CartMerge) error { return nil }

func (s *stubCartRepo) Delete(ctx context.Context, cartID uuid.UUID) error { return nil }

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubProductRepo struct {
	product *models.Product
}

func (s *stubProductRepo) WithTx(tx *gorm.DB) products.Repository { return s }

func (s *stubProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.product != nil && s.product.ID == id {
		return s.product, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *stubProductRepo) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if s.product != nil && s.product.Slug == slug {
		return s.product, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *stubProductRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return nil, nil
}

func (s *stubProductRepo) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return nil, nil
}

func (s *stubProductRepo) ListActive(ctx context.Context, limit int) ([]models.Product, error) {
	return nil, nil
}

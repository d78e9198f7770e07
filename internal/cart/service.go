package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brickmill/storefront-backend/internal/products"
	"github.com/brickmill/storefront-backend/pkg/carttoken"
	"github.com/brickmill/storefront-backend/pkg/db/models"
	"github.com/brickmill/storefront-backend/pkg/enums"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
)

const maxLineQuantity = 999

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// View is the cart plus its computed totals, as returned to callers.
type View struct {
	Cart   *models.Cart `json:"cart"`
	Totals *Totals      `json:"totals"`
}

// ProductRef identifies a catalog product by id or slug; id wins when both
// are set.
type ProductRef struct {
	ID   uuid.UUID
	Slug string
}

// Service exposes cart read/write operations keyed by opaque token.
type Service interface {
	GetOrCreate(ctx context.Context, token string) (*View, error)
	Get(ctx context.Context, token string) (*View, error)
	AddItem(ctx context.Context, token string, ref ProductRef, quantity int) (*View, error)
	SetItemQuantity(ctx context.Context, token string, productID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, token string, productID uuid.UUID) (*View, error)
}

type service struct {
	repo     Repository
	productz products.Repository
	tx       txRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, productRepo products.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, productz: productRepo, tx: tx}, nil
}

// GetOrCreate resolves the token to an active cart, minting a fresh cart
// when the token is missing, malformed, or no longer matches one.
func (s *service) GetOrCreate(ctx context.Context, token string) (*View, error) {
	if carttoken.Valid(token) {
		existing, err := s.repo.FindActiveByToken(ctx, token)
		if err == nil {
			return buildView(existing)
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
	}

	fresh, err := carttoken.Mint()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint cart token")
	}
	created, err := s.repo.Create(ctx, &models.Cart{
		Token:  fresh,
		Status: enums.CartStatusActive,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return buildView(created)
}

func (s *service) Get(ctx context.Context, token string) (*View, error) {
	cart, err := s.loadActive(ctx, token)
	if err != nil {
		return nil, err
	}
	return buildView(cart)
}

// AddItem resolves the product reference, snapshots its price into the line,
// and adds the quantity atomically; concurrent adds for the same product
// both land.
func (s *service) AddItem(ctx context.Context, token string, ref ProductRef, quantity int) (*View, error) {
	if ref.ID == uuid.Nil && strings.TrimSpace(ref.Slug) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id or slug is required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if quantity > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be at most %d", maxLineQuantity))
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindActiveByToken(ctx, token)
		if err != nil {
			return err
		}
		cartID = cart.ID

		product, err := s.resolveProduct(ctx, tx, ref)
		if err != nil {
			return err
		}
		if !product.Active {
			return pkgerrors.New(pkgerrors.CodeConflict, "product is no longer available")
		}
		for _, item := range cart.Items {
			if item.Currency != product.Currency {
				return pkgerrors.New(pkgerrors.CodeValidation, "product currency does not match cart")
			}
		}

		return repo.UpsertItem(ctx, &models.CartItem{
			CartID:         cart.ID,
			ProductID:      product.ID,
			Quantity:       quantity,
			UnitPriceCents: product.UnitPriceCents,
			Currency:       product.Currency,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.viewByID(ctx, cartID)
}

// SetItemQuantity replaces the line quantity; zero removes the line.
func (s *service) SetItemQuantity(ctx context.Context, token string, productID uuid.UUID, quantity int) (*View, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}
	if quantity > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be at most %d", maxLineQuantity))
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, token, productID)
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindActiveByToken(ctx, token)
		if err != nil {
			return err
		}
		cartID = cart.ID
		return repo.SetItemQuantity(ctx, cart.ID, productID, quantity)
	})
	if err != nil {
		return nil, err
	}
	return s.viewByID(ctx, cartID)
}

func (s *service) RemoveItem(ctx context.Context, token string, productID uuid.UUID) (*View, error) {
	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindActiveByToken(ctx, token)
		if err != nil {
			return err
		}
		cartID = cart.ID
		return repo.RemoveItem(ctx, cart.ID, productID)
	})
	if err != nil {
		return nil, err
	}
	return s.viewByID(ctx, cartID)
}

func (s *service) resolveProduct(ctx context.Context, tx *gorm.DB, ref ProductRef) (*models.Product, error) {
	repo := s.productz.WithTx(tx)
	if ref.ID != uuid.Nil {
		return repo.FindByID(ctx, ref.ID)
	}
	return repo.FindBySlug(ctx, ref.Slug)
}

func (s *service) loadActive(ctx context.Context, token string) (*models.Cart, error) {
	if !carttoken.Valid(token) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart token missing or malformed")
	}
	return s.repo.FindActiveByToken(ctx, token)
}

func (s *service) viewByID(ctx context.Context, id uuid.UUID) (*View, error) {
	cart, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildView(cart)
}

func buildView(cart *models.Cart) (*View, error) {
	totals, err := ComputeTotals(cart.Items)
	if err != nil {
		return nil, err
	}
	return &View{Cart: cart, Totals: totals}, nil
}

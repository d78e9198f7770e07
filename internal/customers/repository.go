package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/brickmill/storefront-backend/pkg/db"
	"github.com/brickmill/storefront-backend/pkg/db/models"
	pkgerrors "github.com/brickmill/storefront-backend/pkg/errors"
)

// Repository persists the customer directory keyed by verified email.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	FindOrCreateByEmail(ctx context.Context, email string) (*models.Customer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, err
	}
	return &customer, nil
}

// FindOrCreateByEmail returns the existing row or inserts one, tolerating
// concurrent inserts of the same email.
func (r *repository) FindOrCreateByEmail(ctx context.Context, email string) (*models.Customer, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	var customer models.Customer
	findErr := r.db.WithContext(ctx).First(&customer, "email = ?", email).Error
	if findErr == nil {
		return &customer, nil
	}
	if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return nil, findErr
	}

	customer = models.Customer{ID: uuid.New(), Email: email}
	if createErr := r.db.WithContext(ctx).Create(&customer).Error; createErr != nil {
		if dbpkg.IsUniqueViolation(createErr, "ux_customers_email") {
			var existing models.Customer
			if err := r.db.WithContext(ctx).First(&existing, "email = ?", email).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, createErr
	}
	return &customer, nil
}

// NormalizeEmail lower-cases and trims the address, rejecting blanks.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !strings.Contains(email, "@") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is malformed")
	}
	return email, nil
}

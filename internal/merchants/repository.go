package merchants

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lokapay/settlement-engine/pkg/db/models"
	pkgErrors "github.com/lokapay/settlement-engine/pkg/errors"
)

// Repository persists merchants.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a merchant repository.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Repository{db: db}, nil
}

// GetByID fetches a single merchant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).First(&merchant, "id = ?", id).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgErrors.New(pkgErrors.CodeNotFound, fmt.Sprintf("merchant %s not found", id))
		}
		return nil, fmt.Errorf("fetching merchant %s: %w", id, err)
	}
	return &merchant, nil
}

// IncrementBalance adds amount to the merchant balance inside the caller's
// transaction. The increment is expressed in SQL so concurrent credits to
// the same merchant cannot lose updates.
func (r *Repository) IncrementBalance(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount decimal.Decimal) error {
	if tx == nil {
		return stdErrors.New("transaction required")
	}
	if amount.IsNegative() {
		return pkgErrors.New(pkgErrors.CodeValidation, "credit amount must not be negative")
	}
	result := tx.WithContext(ctx).Model(&models.Merchant{}).
		Where("id = ?", merchantID).
		Update("balance_fiat", gorm.Expr("balance_fiat + ?", amount))
	if result.Error != nil {
		return fmt.Errorf("crediting merchant %s: %w", merchantID, result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgErrors.New(pkgErrors.CodeNotFound, fmt.Sprintf("merchant %s not found", merchantID))
	}
	return nil
}

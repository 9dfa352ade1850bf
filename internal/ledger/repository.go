package ledger

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokapay/settlement-engine/pkg/db/models"
)

// Repository persists settlement events. Events are append-only; nothing in
// the engine updates or deletes them.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement event repository.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Repository{db: db}, nil
}

// Insert appends events inside the caller's transaction.
func (r *Repository) Insert(ctx context.Context, tx *gorm.DB, events ...models.SettlementEvent) error {
	if tx == nil {
		return stdErrors.New("transaction required")
	}
	if len(events) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Create(&events).Error; err != nil {
		return fmt.Errorf("inserting settlement events: %w", err)
	}
	return nil
}

// ListByInvoice returns the invoice's event history, oldest first.
func (r *Repository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.SettlementEvent, error) {
	var rows []models.SettlementEvent
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing settlement events for %s: %w", invoiceID, err)
	}
	return rows, nil
}

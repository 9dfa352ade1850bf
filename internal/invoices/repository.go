package invoices

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lokapay/settlement-engine/pkg/db/models"
	"github.com/lokapay/settlement-engine/pkg/enums"
	pkgErrors "github.com/lokapay/settlement-engine/pkg/errors"
)

// Repository persists invoices.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an invoice repository.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Repository{db: db}, nil
}

// ListScannable returns the invoices the watcher must inspect: every invoice
// whose funds have not been swept. Expired invoices stay in the scan so a
// late deposit is still honored, and settled-but-unswept invoices stay so a
// missed enqueue is retried on the next cycle.
func (r *Repository) ListScannable(ctx context.Context) ([]models.Invoice, error) {
	var rows []models.Invoice
	err := r.db.WithContext(ctx).
		Where("swept_at IS NULL").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing scannable invoices: %w", err)
	}
	return rows, nil
}

// GetByID fetches a single invoice.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgErrors.New(pkgErrors.CodeNotFound, fmt.Sprintf("invoice %s not found", id))
		}
		return nil, fmt.Errorf("fetching invoice %s: %w", id, err)
	}
	return &invoice, nil
}

// GetForUpdate locks and fetches the invoice row inside the caller's
// transaction. Reconciliation always runs against a locked row so two scan
// cycles can never race on the same invoice.
func (r *Repository) GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Invoice, error) {
	if tx == nil {
		return nil, stdErrors.New("transaction required")
	}
	query := tx.WithContext(ctx)
	// sqlite (tests) serializes writers itself and has no FOR UPDATE.
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var invoice models.Invoice
	if err := query.First(&invoice, "id = ?", id).Error; err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgErrors.New(pkgErrors.CodeNotFound, fmt.Sprintf("invoice %s not found", id))
		}
		return nil, fmt.Errorf("locking invoice %s: %w", id, err)
	}
	return &invoice, nil
}

// SettlementUpdate carries the monetary and status columns the watcher writes
// after reconciling a balance observation.
type SettlementUpdate struct {
	ReceivedToken decimal.Decimal
	ReceivedFiat  decimal.Decimal
	TipFiat       decimal.Decimal
	AppFee        decimal.Decimal
	Status        enums.InvoiceStatus
	SettledAt     *time.Time
}

// ApplySettlement writes a reconciliation outcome inside the caller's
// transaction. The caller is responsible for holding the row lock and for
// validating the status transition.
func (r *Repository) ApplySettlement(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, update SettlementUpdate) error {
	if tx == nil {
		return stdErrors.New("transaction required")
	}
	values := map[string]any{
		"amount_received_token": update.ReceivedToken,
		"amount_received_fiat":  update.ReceivedFiat,
		"tip_fiat":              update.TipFiat,
		"app_fee":               update.AppFee,
		"status":                update.Status,
	}
	if update.SettledAt != nil {
		values["settled_at"] = update.SettledAt.UTC()
	}
	err := tx.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", invoiceID).
		Updates(values).Error
	if err != nil {
		return fmt.Errorf("applying settlement to invoice %s: %w", invoiceID, err)
	}
	return nil
}

// MarkDeployed flips the custody deployment flag.
func (r *Repository) MarkDeployed(ctx context.Context, invoiceID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", invoiceID).
		Update("is_deployed", true).Error
	if err != nil {
		return fmt.Errorf("marking invoice %s deployed: %w", invoiceID, err)
	}
	return nil
}

// MarkSwept stamps the sweep outcome exactly once: a row whose swept_at is
// already set is left untouched, which makes sweep retries harmless. The
// transaction hash is nil for the empty-vault case where nothing moved
// on-chain.
func (r *Repository) MarkSwept(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, txHash *string, sweptAt time.Time) (bool, error) {
	runner := r.db
	if tx != nil {
		runner = tx
	}
	values := map[string]any{"swept_at": sweptAt.UTC()}
	if txHash != nil {
		values["sweep_tx_hash"] = *txHash
	}
	result := runner.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND swept_at IS NULL", invoiceID).
		Updates(values)
	if result.Error != nil {
		return false, fmt.Errorf("marking invoice %s swept: %w", invoiceID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

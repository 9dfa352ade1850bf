package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lokapay/settlement-engine/pkg/db/models"
	"github.com/lokapay/settlement-engine/pkg/enums"
	pkgErrors "github.com/lokapay/settlement-engine/pkg/errors"
)

func setupInvoiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	invoices := `
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  merchant_id TEXT NOT NULL,
  salt TEXT NOT NULL,
  deposit_address TEXT NOT NULL UNIQUE,
  amount_fiat NUMERIC NOT NULL,
  amount_token NUMERIC NOT NULL,
  exchange_rate NUMERIC NOT NULL,
  amount_received_token NUMERIC NOT NULL DEFAULT 0,
  amount_received_fiat NUMERIC NOT NULL DEFAULT 0,
  tip_fiat NUMERIC NOT NULL DEFAULT 0,
  app_fee NUMERIC NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  is_deployed INTEGER NOT NULL DEFAULT 0,
  sweep_tx_hash TEXT,
  settled_at DATETIME,
  swept_at DATETIME,
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(invoices).Error)
	require.NoError(t, db.Exec("DELETE FROM invoices").Error)
	return db
}

func newInvoiceRepo(t *testing.T, db *gorm.DB) *Repository {
	t.Helper()
	repo, err := NewRepository(db)
	require.NoError(t, err)
	return repo
}

func newStoredInvoice(t *testing.T, db *gorm.DB, mutate func(*models.Invoice)) *models.Invoice {
	t.Helper()
	invoice := &models.Invoice{
		ID:             uuid.New(),
		MerchantID:     uuid.New(),
		Salt:           "0x" + uuid.NewString()[:8],
		DepositAddress: "0x" + uuid.NewString(),
		AmountFiat:     decimal.RequireFromString("100.00"),
		AmountToken:    decimal.RequireFromString("100"),
		ExchangeRate:   decimal.RequireFromString("1.0"),
		Status:         enums.InvoiceStatusPending,
		ExpiresAt:      time.Now().UTC().Add(time.Hour),
	}
	if mutate != nil {
		mutate(invoice)
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func TestListScannableFiltersByLifecycle(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := newInvoiceRepo(t, db)
	now := time.Now().UTC()

	open := newStoredInvoice(t, db, nil)
	expiredPending := newStoredInvoice(t, db, func(inv *models.Invoice) {
		inv.ExpiresAt = now.Add(-2 * time.Hour)
	})
	expiredPartial := newStoredInvoice(t, db, func(inv *models.Invoice) {
		inv.Status = enums.InvoiceStatusPartiallyPaid
		inv.ExpiresAt = now.Add(-time.Hour)
	})
	settledUnswept := newStoredInvoice(t, db, func(inv *models.Invoice) {
		inv.Status = enums.InvoiceStatusPaid
		inv.ExpiresAt = now.Add(-time.Hour)
	})
	swept := newStoredInvoice(t, db, func(inv *models.Invoice) {
		inv.Status = enums.InvoiceStatusOverpaid
		sweptAt := now.Add(-time.Minute)
		inv.SweptAt = &sweptAt
	})

	rows, err := repo.ListScannable(context.Background())
	require.NoError(t, err)

	ids := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		ids[row.ID] = true
	}
	assert.True(t, ids[open.ID], "open invoice is scannable")
	assert.True(t, ids[expiredPending.ID], "expired pending invoice stays scannable for late payments")
	assert.True(t, ids[expiredPartial.ID], "expired partially paid invoice stays scannable for late payments")
	assert.True(t, ids[settledUnswept.ID], "settled invoice stays scannable until swept")
	assert.False(t, ids[swept.ID], "swept invoice leaves the scan")
}

func TestGetByIDReturnsNotFound(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := newInvoiceRepo(t, db)

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgErrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgErrors.CodeNotFound, typed.Code())
}

func TestApplySettlementWritesMonetaryColumns(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := newInvoiceRepo(t, db)
	ctx := context.Background()
	invoice := newStoredInvoice(t, db, nil)
	settledAt := time.Now().UTC().Truncate(time.Second)

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.ApplySettlement(ctx, tx, invoice.ID, SettlementUpdate{
			ReceivedToken: decimal.RequireFromString("110.5"),
			ReceivedFiat:  decimal.RequireFromString("110.50"),
			TipFiat:       decimal.RequireFromString("10.50"),
			AppFee:        decimal.RequireFromString("1.50"),
			Status:        enums.InvoiceStatusOverpaid,
			SettledAt:     &settledAt,
		})
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusOverpaid, stored.Status)
	assert.True(t, stored.AmountReceivedFiat.Equal(decimal.RequireFromString("110.50")))
	assert.True(t, stored.TipFiat.Equal(decimal.RequireFromString("10.50")))
	assert.True(t, stored.AppFee.Equal(decimal.RequireFromString("1.50")))
	require.NotNil(t, stored.SettledAt)
}

func TestApplySettlementRequiresTransaction(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := newInvoiceRepo(t, db)

	err := repo.ApplySettlement(context.Background(), nil, uuid.New(), SettlementUpdate{})
	require.Error(t, err)
}

func TestMarkSweptStampsOnce(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := newInvoiceRepo(t, db)
	ctx := context.Background()
	invoice := newStoredInvoice(t, db, func(inv *models.Invoice) {
		inv.Status = enums.InvoiceStatusPaid
	})
	txHash := "0xabc123"
	sweptAt := time.Now().UTC()

	stamped, err := repo.MarkSwept(ctx, db, invoice.ID, &txHash, sweptAt)
	require.NoError(t, err)
	assert.True(t, stamped)

	stored, err := repo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SweptAt)
	require.NotNil(t, stored.SweepTxHash)
	assert.Equal(t, txHash, *stored.SweepTxHash)

	// A second stamp is a no-op and must not overwrite the hash.
	otherHash := "0xdef456"
	stamped, err = repo.MarkSwept(ctx, db, invoice.ID, &otherHash, sweptAt.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, stamped)

	stored, err = repo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, txHash, *stored.SweepTxHash)
}

func TestMarkSweptWithoutHashForEmptyVault(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := newInvoiceRepo(t, db)
	ctx := context.Background()
	invoice := newStoredInvoice(t, db, nil)

	stamped, err := repo.MarkSwept(ctx, db, invoice.ID, nil, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, stamped)

	stored, err := repo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SweptAt)
	assert.Nil(t, stored.SweepTxHash)
}

func TestMarkDeployedFlipsFlag(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := newInvoiceRepo(t, db)
	ctx := context.Background()
	invoice := newStoredInvoice(t, db, nil)

	require.NoError(t, repo.MarkDeployed(ctx, invoice.ID))

	stored, err := repo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeployed)
}

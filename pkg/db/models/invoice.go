package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lokapay/settlement-engine/pkg/enums"
)

// Invoice is a merchant's request for payment of a fiat amount, payable in a
// stablecoin at a locked exchange rate. Rows are never deleted; a settled
// invoice is the audit record of the payment.
//
// The watcher owns the monetary/status columns, the sweeper owns the custody
// columns (is_deployed, sweep_tx_hash, swept_at); the two never write the
// same field.
type Invoice struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID uuid.UUID `gorm:"column:merchant_id;type:uuid;not null;index"`

	// Salt deterministically derives the deposit address via the vault
	// factory; both are fixed for the invoice lifetime.
	Salt           string `gorm:"column:salt;not null"`
	DepositAddress string `gorm:"column:deposit_address;not null;uniqueIndex"`

	AmountFiat          decimal.Decimal `gorm:"column:amount_fiat;type:numeric(20,2);not null"`
	AmountToken         decimal.Decimal `gorm:"column:amount_token;type:numeric(30,18);not null"`
	ExchangeRate        decimal.Decimal `gorm:"column:exchange_rate;type:numeric(20,6);not null"`
	AmountReceivedToken decimal.Decimal `gorm:"column:amount_received_token;type:numeric(30,18);not null;default:0"`
	AmountReceivedFiat  decimal.Decimal `gorm:"column:amount_received_fiat;type:numeric(20,2);not null;default:0"`
	TipFiat             decimal.Decimal `gorm:"column:tip_fiat;type:numeric(20,2);not null;default:0"`
	AppFee              decimal.Decimal `gorm:"column:app_fee;type:numeric(20,2);not null;default:0"`

	Status      enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'pending'"`
	IsDeployed  bool                `gorm:"column:is_deployed;not null;default:false"`
	SweepTxHash *string             `gorm:"column:sweep_tx_hash"`
	SettledAt   *time.Time          `gorm:"column:settled_at"`
	SweptAt     *time.Time          `gorm:"column:swept_at"`
	ExpiresAt   time.Time           `gorm:"column:expires_at;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

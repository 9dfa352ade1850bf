package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lokapay/settlement-engine/pkg/enums"
)

// SettlementEvent records an immutable money lifecycle event tied to an
// invoice: the merchant credit, an overpayment tip, the on-chain sweep.
type SettlementEvent struct {
	ID         uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID  uuid.UUID                 `gorm:"column:invoice_id;type:uuid;not null;index"`
	MerchantID uuid.UUID                 `gorm:"column:merchant_id;type:uuid;not null"`
	Type       enums.SettlementEventType `gorm:"column:type;type:settlement_event_type;not null"`
	AmountFiat decimal.Decimal           `gorm:"column:amount_fiat;type:numeric(20,2);not null;default:0"`
	Metadata   json.RawMessage           `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

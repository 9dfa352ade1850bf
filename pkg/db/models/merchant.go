package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Merchant accumulates settled fiat value. The balance is only ever mutated
// as a side effect of an invoice reaching a final status, exactly once per
// invoice.
type Merchant struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Email       string          `gorm:"column:email;not null;uniqueIndex"`
	BalanceFiat decimal.Decimal `gorm:"column:balance_fiat;type:numeric(20,2);not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

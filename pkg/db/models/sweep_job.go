package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lokapay/settlement-engine/pkg/enums"
)

// SweepJob is a durable queue message instructing the sweep worker to
// provision an invoice's custody vault and move its token balance to the hot
// wallet. Delivery is at-least-once; the handler is idempotent.
type SweepJob struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID      uuid.UUID            `gorm:"column:invoice_id;type:uuid;not null;index"`
	DepositAddress string               `gorm:"column:deposit_address;not null"`
	Salt           string               `gorm:"column:salt;not null"`
	Status         enums.SweepJobStatus `gorm:"column:status;type:sweep_job_status;not null;default:'pending';index"`
	AttemptCount   int                  `gorm:"column:attempt_count;not null;default:0"`
	NextRunAt      time.Time            `gorm:"column:next_run_at;not null"`
	LastError      *string              `gorm:"column:last_error"`
	CompletedAt    *time.Time           `gorm:"column:completed_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

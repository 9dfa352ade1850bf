package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lokapay/settlement-engine/pkg/enums"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events and
// published verbatim to Pub/Sub.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// InvoiceSettledData is the payload for invoice.settled events.
type InvoiceSettledData struct {
	InvoiceID    uuid.UUID           `json:"invoiceId"`
	MerchantID   uuid.UUID           `json:"merchantId"`
	Status       enums.InvoiceStatus `json:"status"`
	AmountFiat   decimal.Decimal     `json:"amountFiat"`
	ReceivedFiat decimal.Decimal     `json:"receivedFiat"`
	TipFiat      decimal.Decimal     `json:"tipFiat"`
	AppFee       decimal.Decimal     `json:"appFee"`
	SettledAt    time.Time           `json:"settledAt"`
}

// InvoiceSweptData is the payload for invoice.swept events. TxHash is empty
// when the vault held no balance and nothing moved on-chain.
type InvoiceSweptData struct {
	InvoiceID  uuid.UUID `json:"invoiceId"`
	MerchantID uuid.UUID `json:"merchantId"`
	TxHash     string    `json:"txHash,omitempty"`
	SweptAt    time.Time `json:"sweptAt"`
}

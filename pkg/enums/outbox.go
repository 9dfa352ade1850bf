package enums

import "fmt"

// OutboxEventType names the settlement events fanned out to downstream
// consumers (dashboard sync, merchant webhooks).
type OutboxEventType string

const (
	EventInvoiceSettled OutboxEventType = "invoice.settled"
	EventInvoiceSwept   OutboxEventType = "invoice.swept"
)

var validOutboxEventTypes = []OutboxEventType{
	EventInvoiceSettled,
	EventInvoiceSwept,
}

// String implements fmt.Stringer.
func (t OutboxEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateInvoice OutboxAggregateType = "invoice"
)

// IsValid reports whether the value is known.
func (t OutboxAggregateType) IsValid() bool {
	return t == AggregateInvoice
}

package enums

import "fmt"

// SettlementEventType labels immutable settlement ledger rows.
type SettlementEventType string

const (
	SettlementEventCredit SettlementEventType = "credit"
	SettlementEventTip    SettlementEventType = "tip"
	SettlementEventSweep  SettlementEventType = "sweep"
)

var validSettlementEventTypes = []SettlementEventType{
	SettlementEventCredit,
	SettlementEventTip,
	SettlementEventSweep,
}

// String implements fmt.Stringer.
func (t SettlementEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t SettlementEventType) IsValid() bool {
	for _, candidate := range validSettlementEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSettlementEventType converts raw input into a SettlementEventType.
func ParseSettlementEventType(value string) (SettlementEventType, error) {
	for _, candidate := range validSettlementEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement event type %q", value)
}

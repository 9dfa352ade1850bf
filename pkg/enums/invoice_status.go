package enums

import "fmt"

// InvoiceStatus tracks the settlement lifecycle of an invoice. Transitions
// only move forward: pending -> partially_paid -> paid | overpaid.
type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "pending"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverpaid      InvoiceStatus = "overpaid"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusPending,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusPaid,
	InvoiceStatusOverpaid,
}

var invoiceStatusRank = map[InvoiceStatus]int{
	InvoiceStatusPending:       0,
	InvoiceStatusPartiallyPaid: 1,
	InvoiceStatusPaid:          2,
	InvoiceStatusOverpaid:      2,
}

// String implements fmt.Stringer.
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsFinal reports whether the invoice has settled; final statuses are
// terminal and lock in merchant crediting and sweep eligibility.
func (s InvoiceStatus) IsFinal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusOverpaid
}

// CanTransitionTo reports whether moving to next respects the forward-only
// lifecycle. Re-asserting the current status is allowed; regressions and
// transitions out of a final status are not.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsFinal() {
		return false
	}
	return invoiceStatusRank[next] >= invoiceStatusRank[s]
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}

package enums

import "testing"

func TestInvoiceStatusForwardOnly(t *testing.T) {
	cases := []struct {
		from, to InvoiceStatus
		want     bool
	}{
		{InvoiceStatusPending, InvoiceStatusPartiallyPaid, true},
		{InvoiceStatusPending, InvoiceStatusPaid, true},
		{InvoiceStatusPending, InvoiceStatusOverpaid, true},
		{InvoiceStatusPartiallyPaid, InvoiceStatusPaid, true},
		{InvoiceStatusPartiallyPaid, InvoiceStatusPartiallyPaid, true},
		{InvoiceStatusPartiallyPaid, InvoiceStatusPending, false},
		{InvoiceStatusPaid, InvoiceStatusPartiallyPaid, false},
		{InvoiceStatusPaid, InvoiceStatusOverpaid, false},
		{InvoiceStatusOverpaid, InvoiceStatusPaid, false},
		{InvoiceStatusPaid, InvoiceStatusPaid, true},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestInvoiceStatusFinality(t *testing.T) {
	if InvoiceStatusPending.IsFinal() || InvoiceStatusPartiallyPaid.IsFinal() {
		t.Fatal("non-final statuses reported final")
	}
	if !InvoiceStatusPaid.IsFinal() || !InvoiceStatusOverpaid.IsFinal() {
		t.Fatal("final statuses not reported final")
	}
}

func TestParseInvoiceStatus(t *testing.T) {
	status, err := ParseInvoiceStatus("partially_paid")
	if err != nil {
		t.Fatalf("ParseInvoiceStatus: %v", err)
	}
	if status != InvoiceStatusPartiallyPaid {
		t.Fatalf("unexpected status %s", status)
	}
	if _, err := ParseInvoiceStatus("PAID"); err == nil {
		t.Fatal("expected error for unknown casing")
	}
}

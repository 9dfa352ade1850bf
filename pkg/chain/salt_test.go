package chain

import (
	"strings"
	"testing"
)

func TestDeriveSaltDeterministic(t *testing.T) {
	a := DeriveSalt("6a1e6f7e-9a6a-4c8e-9d4c-2f7a7f6f0a10")
	b := DeriveSalt("6a1e6f7e-9a6a-4c8e-9d4c-2f7a7f6f0a10")
	if a != b {
		t.Fatalf("salt not deterministic: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "0x") || len(a) != 66 {
		t.Fatalf("expected 0x-prefixed 32-byte hex, got %q", a)
	}
	if a == DeriveSalt("another-invoice") {
		t.Fatal("different invoices produced the same salt")
	}
}

func TestParseSalt(t *testing.T) {
	salt := DeriveSalt("invoice-1")
	parsed, err := ParseSalt(salt)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(parsed) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(parsed))
	}

	if _, err := ParseSalt("0x1234"); err == nil {
		t.Fatal("expected error for short salt")
	}
	if _, err := ParseSalt("not-hex"); err == nil {
		t.Fatal("expected error for malformed salt")
	}
}

package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dependency", New(CodeDependency, "rpc timeout"), true},
		{"simulation", New(CodeSimulation, "sweep would revert"), false},
		{"insufficient gas", New(CodeInsufficientGas, "operator dry"), false},
		{"state conflict", New(CodeStateConflict, "already final"), false},
		{"plain error defaults retryable", stdErrors.New("boom"), true},
		{"wrapped typed error", fmt.Errorf("outer: %w", New(CodeSimulation, "revert")), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "balance read")
	if err.Error() != "DEPENDENCY_ERROR: balance read: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !stdErrors.Is(err, cause) {
		t.Fatal("expected cause to unwrap")
	}
}

func TestAsReturnsNilForUntyped(t *testing.T) {
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
	typed := New(CodeValidation, "bad salt")
	if As(fmt.Errorf("wrap: %w", typed)) != typed {
		t.Fatal("expected typed error recovered through wrapping")
	}
}

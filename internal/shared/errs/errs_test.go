package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestStorageWrapsOnce(t *testing.T) {
	base := errors.New("conn refused")
	err := Storage("create contract", base)
	again := Storage("outer", fmt.Errorf("ctx: %w", err))

	if !IsStorage(again) {
		t.Fatalf("expected storage error")
	}
	var se *StorageError
	if !errors.As(again, &se) || se.Op != "create contract" {
		t.Fatalf("expected inner op to be kept, got %+v", se)
	}
	if !errors.Is(again, base) {
		t.Fatalf("expected base error in chain")
	}
	if Storage("noop", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestExternalFlagsTimeout(t *testing.T) {
	err := External("extractor", fmt.Errorf("call: %w", context.DeadlineExceeded))
	if !err.Timeout {
		t.Fatalf("expected timeout flag")
	}
	if err.Error() == "" || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error chain: %v", err)
	}
	if External("smtp", errors.New("550 rejected")).Timeout {
		t.Fatalf("expected non-timeout")
	}
}

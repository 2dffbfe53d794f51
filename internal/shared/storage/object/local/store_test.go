package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"contract-backend/internal/shared/storage/object"
)

func TestSaveOpenDeleteRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	payload := []byte("%PDF-1.4 contract body")

	key, size, err := store.Save(ctx, "user-1", "lease agreement.pdf", "application/pdf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), size)
	}
	if !strings.HasSuffix(key, "_lease agreement.pdf") {
		t.Fatalf("unexpected key %q", key)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("content mismatch")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, err := store.Open(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../etc/passwd", "/etc/passwd", ""} {
		if _, err := store.Open(context.Background(), key); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestSaveRejectsTraversalFileName(t *testing.T) {
	store := New(t.TempDir())
	if _, _, err := store.Save(context.Background(), "u", "../x.pdf", "application/pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for traversal name")
	}
}

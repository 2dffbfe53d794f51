package util

import "testing"

func TestOwnerKeyIsStableAndPathSafe(t *testing.T) {
	got := OwnerKey("guest:g-1")
	if got != OwnerKey("guest:g-1") {
		t.Fatalf("expected stable key, got %s", got)
	}
	if len(got) != ownerKeyLen {
		t.Fatalf("expected %d characters, got %d", ownerKeyLen, len(got))
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("key contains non-hex character: %c", ch)
		}
	}
	if OwnerKey("user-1") == OwnerKey("user-2") {
		t.Fatalf("distinct owners must not share a prefix")
	}
}

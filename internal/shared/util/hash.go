package util

import (
	"crypto/sha256"
	"encoding/hex"
)

const ownerKeyLen = 32

// OwnerKey maps an owner id (user or guest) to a fixed-length, path-safe object key prefix.
func OwnerKey(ownerID string) string {
	sum := sha256.Sum256([]byte("owner:" + ownerID))
	return hex.EncodeToString(sum[:])[:ownerKeyLen]
}

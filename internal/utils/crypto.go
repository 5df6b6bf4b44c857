package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex is used to store refresh tokens without keeping the raw value.
func SHA256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

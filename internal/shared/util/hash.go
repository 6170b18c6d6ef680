package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum returns the hex sha256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex SHA-256 digest of data
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong entity tag for content
func ETag(content string) string {
	return `"` + ShortHash(Hash([]byte(content))) + `"`
}

// ShortHash truncates a hash for display
func ShortHash(fullHash string) string {
	if len(fullHash) < 16 {
		return fullHash
	}
	return fullHash[:16]
}

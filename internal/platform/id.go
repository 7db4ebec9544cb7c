package platform

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// keyBytes is the number of random bytes behind an access key (16 hex chars).
const keyBytes = 8

func NewID() string {
	return uuid.New().String()
}

// NewKey returns a fresh access key: 8 bytes from crypto/rand, lowercase hex.
func NewKey() (string, error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const secretLen = 32

// NewSecret returns a cryptographically random, URL-safe opaque token with
// 256 bits of entropy. Used for email verification and password reset
// secrets; callers own persistence, TTL, and single-use bookkeeping.
func NewSecret() (string, error) {
	b := make([]byte, secretLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Fingerprint derives the fixed-length session lookup key for a token.
// One-way, so session rows never hold a usable credential.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

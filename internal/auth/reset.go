package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultResetTTL is the validity window for a password-reset token.
const DefaultResetTTL = time.Hour

const resetSecretLen = 32

// NewResetSecret generates the single-use secret handed to the user
// out-of-band. Only its digest is ever stored.
func NewResetSecret() (string, error) {
	buf := make([]byte, resetSecretLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read reset secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ResetDigest maps a reset secret to the value persisted against the
// identity. Lookup on consume recomputes the digest, so the plaintext never
// touches storage.
func ResetDigest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

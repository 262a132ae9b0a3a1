package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// resetTokenBytes is the entropy of a password reset token before hex encoding.
const resetTokenBytes = 32

// NewResetToken returns a random reset token in cleartext (hex) and the SHA-256 hash to persist.
// The cleartext is handed to the account owner once and never stored.
func NewResetToken() (cleartext, hash string, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	cleartext = hex.EncodeToString(b)
	return cleartext, HashResetToken(cleartext), nil
}

// HashResetToken returns a SHA-256 hash of the reset token string, hex-encoded.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

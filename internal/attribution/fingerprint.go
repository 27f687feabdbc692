package attribution

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprinter produces salted one-way hashes of client IP and user
// agent strings. Hashes are the only form in which these values are
// stored or compared; the raw values never leave the request scope.
type Fingerprinter struct {
	salt []byte
}

// NewFingerprinter creates a fingerprinter with the given salt. The salt
// should be a stable deployment secret: changing it orphans every
// outstanding fingerprint-correlated session.
func NewFingerprinter(salt string) *Fingerprinter {
	return &Fingerprinter{salt: []byte(salt)}
}

// Hash returns the hex-encoded SHA-256 of salt||value. Empty input
// yields an empty hash so a missing signal never matches anything.
func (f *Fingerprinter) Hash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	h := sha256.New()
	h.Write(f.salt)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

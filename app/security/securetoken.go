package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const secureTokenBytes = 32

// OneTimeToken is a high-entropy single-use token. The raw value is handed
// to the user exactly once; only HashToken(Raw) is ever persisted.
type OneTimeToken struct {
	Raw       string
	ExpiresAt time.Time
}

// GenerateSecureToken returns 32 bytes of cryptographically secure random
// data, hex-encoded (64 characters, 256 bits of entropy).
func GenerateSecureToken() (string, error) {
	buf := make([]byte, secureTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewVerificationToken mints an email-verification token valid for ttl.
func NewVerificationToken(ttl time.Duration) (OneTimeToken, error) {
	return newOneTimeToken(ttl)
}

// NewResetToken mints a password-reset token valid for ttl. Reset windows
// are kept shorter than verification windows.
func NewResetToken(ttl time.Duration) (OneTimeToken, error) {
	return newOneTimeToken(ttl)
}

func newOneTimeToken(ttl time.Duration) (OneTimeToken, error) {
	raw, err := GenerateSecureToken()
	if err != nil {
		return OneTimeToken{}, err
	}
	return OneTimeToken{
		Raw:       raw,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// HashToken returns the deterministic SHA-256 hex digest of a raw token.
// Unlike the salted password hash, the digest must be reproducible because
// it doubles as the database lookup key; the raw token's entropy makes the
// unsalted hash safe.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func IsExpired(expiresAt time.Time) bool {
	return time.Now().After(expiresAt)
}

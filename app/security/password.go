package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/microlearn/auth-service/config"
)

const (
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// PasswordHasher hashes credentials with argon2id. The salt and the cost
// parameters are embedded in the encoded digest, so Verify works on digests
// produced under older parameter sets.
type PasswordHasher struct {
	time    uint32
	memory  uint32
	threads uint8
}

func NewPasswordHasher(cfg config.PasswordConfig) *PasswordHasher {
	h := &PasswordHasher{
		time:    cfg.Argon2Time,
		memory:  cfg.Argon2Memory,
		threads: cfg.Argon2Threads,
	}
	if h.time == 0 {
		h.time = 3
	}
	if h.memory == 0 {
		h.memory = 64 * 1024
	}
	if h.threads == 0 {
		h.threads = 4
	}
	return h
}

// Hash returns an encoded digest in the form
// $argon2id$v=19$m=MEMORY,t=TIME,p=THREADS$SALT$HASH.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, argon2KeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory, h.time, h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	)
	return encoded, nil
}

// Verify reports whether password matches the encoded digest. A malformed
// digest yields false, never an error.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}

	sum := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(sum, expected) == 1
}

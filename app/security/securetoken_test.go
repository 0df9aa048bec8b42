package security_test

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/microlearn/auth-service/app/security"
)

func TestGenerateSecureToken(t *testing.T) {
	raw, err := security.GenerateSecureToken()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(raw))
	}
	if _, err := hex.DecodeString(raw); err != nil {
		t.Fatalf("expected hex output, got %q: %v", raw, err)
	}

	other, err := security.GenerateSecureToken()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if raw == other {
		t.Fatal("expected two tokens to differ")
	}
}

func TestNewVerificationToken(t *testing.T) {
	tok, err := security.NewVerificationToken(24 * time.Hour)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if tok.Raw == "" {
		t.Fatal("expected a raw token")
	}

	remaining := time.Until(tok.ExpiresAt)
	if remaining < 23*time.Hour || remaining > 24*time.Hour {
		t.Fatalf("unexpected expiry window: %v", remaining)
	}
}

func TestHashToken(t *testing.T) {
	digest := security.HashToken("raw-token")
	if len(digest) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(digest))
	}
	if digest != security.HashToken("raw-token") {
		t.Fatal("expected the digest to be deterministic")
	}
	if digest == security.HashToken("other-token") {
		t.Fatal("expected different inputs to produce different digests")
	}
}

func TestIsExpired(t *testing.T) {
	if security.IsExpired(time.Now().Add(time.Hour)) {
		t.Fatal("future expiry reported as expired")
	}
	if !security.IsExpired(time.Now().Add(-time.Second)) {
		t.Fatal("past expiry not reported as expired")
	}
}

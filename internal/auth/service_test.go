package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckKey(t *testing.T) {
	hash, err := HashKey("secret-key")
	if err != nil {
		t.Fatalf("HashKey: %v", err)
	}
	if err := CheckKey(hash, "secret-key"); err != nil {
		t.Errorf("expected key to match, got %v", err)
	}
	if err := CheckKey(hash, "wrong"); err == nil {
		t.Error("expected mismatch for wrong key")
	}
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	b, _ := GenerateKey()
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Error("expected distinct keys")
	}
}

func TestNewKeyVerifier_EmptyHashDisablesAuth(t *testing.T) {
	if v := NewKeyVerifier("  "); v != nil {
		t.Fatalf("expected nil verifier, got %+v", v)
	}
}

func TestKeyVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("k1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	v := NewKeyVerifier(string(hash))

	if err := v.Verify("k1"); err != nil {
		t.Fatalf("expected valid key, got %v", err)
	}
	if len(v.verified) != 1 {
		t.Errorf("expected verified key to be cached, got %d entries", len(v.verified))
	}
	if err := v.Verify("k1"); err != nil {
		t.Errorf("expected cached key to verify, got %v", err)
	}
	if err := v.Verify("k2"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if err := v.Verify(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for empty key, got %v", err)
	}
}

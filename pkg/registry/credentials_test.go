package registry

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGeneratePasswordIsRandomAndNonEmpty(t *testing.T) {
	a, err := generatePassword()
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	b, err := generatePassword()
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}

	if a == "" || b == "" {
		t.Fatal("expected non-empty passwords")
	}
	if a == b {
		t.Fatal("expected two independently generated passwords to differ")
	}
}

func TestHashPasswordRoundTrips(t *testing.T) {
	plain, err := generatePassword()
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}

	hash, err := hashPassword(plain)
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		t.Errorf("hash does not verify against original password: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong")); err == nil {
		t.Error("hash unexpectedly verified against an incorrect password")
	}
}

func TestGenerateRevocationTokenLength(t *testing.T) {
	token, err := generateRevocationToken()
	if err != nil {
		t.Fatalf("generateRevocationToken: %v", err)
	}
	// 32 random bytes, hex-encoded, is 64 characters.
	if len(token) != 64 {
		t.Errorf("len(token) = %d, want 64", len(token))
	}
}

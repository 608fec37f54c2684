package registry

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches wisbric-nightowl's user password hashing cost;
// devices.password_hash is genuine password material, not an API key,
// so it follows the same idiom rather than a fast digest.
const bcryptCost = 12

// passwordLength is the size, in random bytes, of a generated broker
// password before base64 encoding.
const passwordLength = 24

// generatePassword returns a URL-safe random password suitable for use
// as an MQTT broker credential.
func generatePassword() (string, error) {
	buf := make([]byte, passwordLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating random password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashPassword bcrypt-hashes a plaintext broker password for storage.
func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// generateRevocationToken returns a 256-bit random value encoded as hex,
// per spec.md's "Revocation Token (256-bit random)".
func generateRevocationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating revocation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

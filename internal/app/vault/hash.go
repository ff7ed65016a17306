package vault

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. Changing any of them invalidates every stored record.
const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1

	HashWidth = 32
	SaltWidth = 16
)

// HashPassword derives the fixed-width verifier for password under salt.
func HashPassword(password string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, HashWidth)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return key, nil
}

// NewSalt returns SaltWidth bytes from the system CSPRNG.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltWidth)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Verify reports whether password hashes to stored under salt.
func Verify(password string, stored, salt []byte) (bool, error) {
	computed, err := HashPassword(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, stored) == 1, nil
}

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password against a stored bcrypt hash. Any hash that
// is not bcrypt, including placeholder credentials, never matches.
func CheckPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PlaceholderPassword returns a random value for accounts that have no
// password. It is stored as-is and is not a valid bcrypt hash.
func PlaceholderPassword() (string, error) {
	return RandomToken(32)
}

// IsUnusablePassword reports whether hash is not a bcrypt hash, as is the case
// for values from PlaceholderPassword.
func IsUnusablePassword(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err != nil
}

// RandomToken returns n random bytes hex encoded.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

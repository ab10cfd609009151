package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Hash parameters are fixed; changing them invalidates previously
// stored hashes, so bump them only together with a format version.
const (
	saltLength = 16
	keyLength  = 32
	iterations = 10000
)

// ErrEmptyPassword is returned when hashing a blank password.
var ErrEmptyPassword = errors.New("password must not be empty")

// HashPassword derives a PBKDF2-SHA256 key from the password under a
// random salt and returns base64(salt || key).
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(append(salt, key...)), nil
}

// VerifyPassword re-derives the key from the candidate password and
// compares it against the stored hash in constant time. A malformed
// stored value is a verification failure, never an error.
func VerifyPassword(password, stored string) bool {
	if password == "" || stored == "" {
		return false
	}

	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) != saltLength+keyLength {
		return false
	}

	derived := pbkdf2.Key([]byte(password), raw[:saltLength], iterations, keyLength, sha256.New)
	return subtle.ConstantTimeCompare(raw[saltLength:], derived) == 1
}

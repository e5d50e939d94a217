package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when an email/password pair does not match.
var ErrBadCredentials = errors.New("bad credentials")

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	const op = "auth.HashPassword"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// ComparePassword checks password against hash. A mismatch (or an empty
// hash, as stored for Google-only accounts) yields ErrBadCredentials.
func ComparePassword(hash, password string) error {
	const op = "auth.ComparePassword"
	if hash == "" {
		return fmt.Errorf("%s: %w", op, ErrBadCredentials)
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return fmt.Errorf("%s: %w", op, ErrBadCredentials)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

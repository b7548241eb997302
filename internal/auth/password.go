package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordNotSet is returned when comparing against an account whose local
// credential was removed or never set.
var ErrPasswordNotSet = errors.New("password not set")

// HashPassword hashes a plaintext password. Costs outside bcrypt's range fall
// back to bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value. An empty hash
// never matches.
func ComparePassword(hashed, plain string) error {
	if hashed == "" {
		return ErrPasswordNotSet
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

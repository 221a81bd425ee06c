package utils

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// specialChars is the set of characters that satisfy the "special
// character" password rule.
const specialChars = "!@#$%^&*()-_=+[]{};:'\",.<>/?`~\\|"

// PolicyError reports the first password rule that was not met.  The
// Reason string is stable so clients and tests can rely on it.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return "weak password: " + e.Reason }

// ValidatePassword checks password strength.  Rules are evaluated in a
// fixed order (length, uppercase, lowercase, digit, special) and the
// first unmet rule is returned, so error messages are deterministic.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return &PolicyError{Reason: "must be at least 8 characters"}
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		return &PolicyError{Reason: "must contain an uppercase letter"}
	}
	if !hasLower {
		return &PolicyError{Reason: "must contain a lowercase letter"}
	}
	if !hasDigit {
		return &PolicyError{Reason: "must contain a digit"}
	}
	if !hasSpecial {
		return &PolicyError{Reason: "must contain a special character"}
	}
	return nil
}

// HashPassword returns a bcrypt hash using the given cost.  bcrypt salts
// every call, so hashing the same password twice yields different strings.
func HashPassword(plain string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain password.
// A malformed stored hash is treated as a mismatch, never an error.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

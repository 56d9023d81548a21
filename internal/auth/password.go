package auth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost keeps hashes interchangeable with existing cost-10 account records.
	bcryptCost = 10

	MaxUsernameLength = 32
	MinPasswordLength = 1
)

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword compares a bcrypt hashed password with its plaintext version.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidateCredentials checks the shape of a username/password pair before it is stored.
func ValidateCredentials(username, password string) error {
	if username == "" || strings.TrimSpace(username) != username || utf8.RuneCountInString(username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if strings.ContainsAny(username, " \t\r\n/") || !utf8.ValidString(username) {
		return ErrInvalidUsername
	}
	if len(password) < MinPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

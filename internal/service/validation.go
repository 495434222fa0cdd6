package service

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"storytime/internal/auth"
)

var mailboxPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(email string) bool {
	return validation.Validate(email, validation.Required, validation.Match(mailboxPattern)) == nil
}

// allPresent reports whether every value is non-blank.
func allPresent(values ...string) bool {
	for _, v := range values {
		if validation.Validate(strings.TrimSpace(v), validation.Required) != nil {
			return false
		}
	}
	return true
}

func hashPassword(hasher *auth.PasswordHasher, password string) (string, error) {
	hash, err := hasher.Hash(password)
	switch {
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "", badRequest("Password must be at most 72 bytes.")
	case err != nil:
		return "", serverError(msgServer, err)
	}
	return hash, nil
}

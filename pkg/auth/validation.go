package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/tendant/simple-todo/pkg/domain"
)

const (
	maxEmailLength    = 254 // RFC 5321
	minUsernameLength = 3
	maxUsernameLength = 50
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address format and length.
func ValidateEmail(email string) error {
	normalized := NormalizeEmail(email)
	if normalized == "" || len(normalized) > maxEmailLength {
		return domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return domain.ErrInvalidEmail
	}
	return nil
}

// ValidateUsername checks the handle: 3-50 characters, letters, digits,
// underscore or hyphen, starting with a letter or digit.
func ValidateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return domain.ErrInvalidUsername
	}
	if !usernameRegex.MatchString(username) {
		return domain.ErrInvalidUsername
	}
	return nil
}

// CleanName trims a display name and strips control characters. Names are
// stored as entered; HTML escaping happens where they are rendered.
func CleanName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
}

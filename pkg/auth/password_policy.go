package auth

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/tendant/simple-todo/internal/config"
	"github.com/tendant/simple-todo/pkg/domain"
)

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// NewPasswordPolicy creates a PasswordPolicy from config.
func NewPasswordPolicy(cfg config.PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        cfg.MinLength,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireNumber:    cfg.RequireNumber,
		RequireSpecial:   cfg.RequireSpecial,
	}
}

// ValidatePassword returns a validation error on the "password" field listing
// every requirement when any of them is not met.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	if p == nil {
		return nil
	}
	ok := (p.MinLength <= 0 || len(password) >= p.MinLength) &&
		(!p.RequireUppercase || containsRune(password, unicode.IsUpper)) &&
		(!p.RequireLowercase || containsRune(password, unicode.IsLower)) &&
		(!p.RequireNumber || containsRune(password, unicode.IsDigit)) &&
		(!p.RequireSpecial || containsRune(password, isSpecial))
	if ok {
		return nil
	}
	return domain.NewValidationError("password", p.Requirements())
}

// Requirements returns a human-readable description of the policy.
func (p *PasswordPolicy) Requirements() string {
	if !p.HasRequirements() {
		return "no password requirements"
	}

	var requirements []string
	if p.MinLength > 0 {
		requirements = append(requirements, "at least "+strconv.Itoa(p.MinLength)+" characters")
	}
	if p.RequireUppercase {
		requirements = append(requirements, "one uppercase letter")
	}
	if p.RequireLowercase {
		requirements = append(requirements, "one lowercase letter")
	}
	if p.RequireNumber {
		requirements = append(requirements, "one number")
	}
	if p.RequireSpecial {
		requirements = append(requirements, "one special character")
	}
	return "password must contain " + strings.Join(requirements, ", ")
}

// HasRequirements returns true if the policy has any requirements.
func (p *PasswordPolicy) HasRequirements() bool {
	return p.MinLength > 0 || p.RequireUppercase || p.RequireLowercase || p.RequireNumber || p.RequireSpecial
}

func containsRune(s string, pred func(rune) bool) bool {
	return strings.IndexFunc(s, pred) >= 0
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}

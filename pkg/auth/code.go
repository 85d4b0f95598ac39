package auth

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

const codeDigits = 6

// Default code lifetimes
const (
	DefaultEmailVerificationTTL = 24 * time.Hour
	DefaultPasswordResetTTL     = time.Hour
)

var codeSpace = big.NewInt(1_000_000)

// CodeIssuer generates six digit single-use codes.
type CodeIssuer struct {
	rand io.Reader
}

// NewCodeIssuer creates a code issuer backed by crypto/rand.
func NewCodeIssuer() *CodeIssuer {
	return &CodeIssuer{rand: rand.Reader}
}

// Issue returns a code drawn uniformly from 000000-999999 and its expiry.
func (c *CodeIssuer) Issue(now time.Time, ttl time.Duration) (string, time.Time, error) {
	n, err := rand.Int(c.rand, codeSpace)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), now.Add(ttl), nil
}

// IsValid reports whether supplied matches the stored code exactly and the
// code has not expired. The caller must clear the code after a match.
func (c *CodeIssuer) IsValid(storedCode *string, storedExpiry *time.Time, supplied string, now time.Time) bool {
	if storedCode == nil || storedExpiry == nil || !IsCodeFormat(supplied) {
		return false
	}
	if !constantTimeCompare([]byte(*storedCode), []byte(supplied)) {
		return false
	}
	return storedExpiry.After(now)
}

// IsCodeFormat reports whether s is exactly six ASCII digits.
func IsCodeFormat(s string) bool {
	if len(s) != codeDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record. The auth service is the only writer of the
// lockout, token and code fields.
type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string

	EmailVerified         bool
	VerificationCode      *string
	VerificationExpiresAt *time.Time

	ResetCode      *string
	ResetExpiresAt *time.Time

	// RefreshTokenHash is the SHA-256 hex of the single active refresh token.
	RefreshTokenHash *string
	RefreshExpiresAt *time.Time

	FailedLoginAttempts int
	LockedUntil         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked returns true if the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// Clone returns a copy that can be modified and persisted as the next version.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// WithVerificationCode returns the next version carrying a new outstanding verification code.
func (u *User) WithVerificationCode(code string, expiresAt, now time.Time) *User {
	next := u.Clone()
	next.VerificationCode = &code
	next.VerificationExpiresAt = &expiresAt
	next.UpdatedAt = now
	return next
}

// Verified returns the next version with the email verified and the code consumed.
func (u *User) Verified(now time.Time) *User {
	next := u.Clone()
	next.EmailVerified = true
	next.VerificationCode = nil
	next.VerificationExpiresAt = nil
	next.UpdatedAt = now
	return next
}

// WithResetCode returns the next version carrying a new outstanding reset code.
func (u *User) WithResetCode(code string, expiresAt, now time.Time) *User {
	next := u.Clone()
	next.ResetCode = &code
	next.ResetExpiresAt = &expiresAt
	next.UpdatedAt = now
	return next
}

// WithPassword returns the next version with the password hash replaced and
// any outstanding reset code consumed.
func (u *User) WithPassword(hash string, now time.Time) *User {
	next := u.Clone()
	next.PasswordHash = hash
	next.ResetCode = nil
	next.ResetExpiresAt = nil
	next.UpdatedAt = now
	return next
}

// Profile is the user-editable field group.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

// Profile returns the user's editable fields.
func (u *User) Profile() Profile {
	return Profile{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

// WithProfile returns the next version with the editable fields replaced.
func (u *User) WithProfile(p Profile, now time.Time) *User {
	next := u.Clone()
	next.Username = p.Username
	next.FirstName = p.FirstName
	next.LastName = p.LastName
	next.UpdatedAt = now
	return next
}

// FullName returns the display name used in notifications.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// LockoutState is the failure counter and lock deadline pair.
type LockoutState struct {
	FailedLoginAttempts int
	LockedUntil         *time.Time
}

// Lockout returns the current lockout state of the user.
func (u *User) Lockout() LockoutState {
	return LockoutState{
		FailedLoginAttempts: u.FailedLoginAttempts,
		LockedUntil:         u.LockedUntil,
	}
}

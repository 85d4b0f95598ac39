package domain

import (
	"errors"
	"sort"
	"strings"
)

// Authentication errors
var (
	ErrUserNotFound            = errors.New("user not found")
	ErrUserAlreadyExists       = errors.New("user with this email already exists")
	ErrUsernameAlreadyExists   = errors.New("username is already taken")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrAccountLocked           = errors.New("account is locked due to multiple failed login attempts")
	ErrEmailNotVerified        = errors.New("please verify your email address before logging in")
	ErrEmailAlreadyVerified    = errors.New("email is already verified")
	ErrInvalidToken            = errors.New("invalid token")
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrVerificationCodeExpired = errors.New("email verification code has expired")
	ErrInvalidResetCode        = errors.New("invalid or expired reset code")
	ErrResetCodeExpired        = errors.New("password reset code has expired")
	ErrInvalidRefreshToken     = errors.New("invalid refresh token")
	ErrRefreshTokenExpired     = errors.New("refresh token has expired")
	ErrPasswordMismatch        = errors.New("current password is incorrect")
	ErrEmailDelivery           = errors.New("failed to send email")
	ErrAuthenticationRequired  = errors.New("authentication required")
)

// Task errors
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskAccessDenied = errors.New("you don't have permission to access this task")
)

// Validation errors
var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidUsername = errors.New("invalid username format")
	ErrWeakPassword    = errors.New("password does not meet requirements")
)

// ValidationError reports malformed input field by field.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

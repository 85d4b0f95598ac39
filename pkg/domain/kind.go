package domain

import "errors"

// Kind classifies an error for the transport boundary.
type Kind string

const (
	KindValidation         Kind = "validation_failed"
	KindAlreadyExists      Kind = "already_exists"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindNotVerified        Kind = "not_verified"
	KindLocked             Kind = "locked"
	KindTokenExpired       Kind = "token_expired"
	KindInvalidToken       Kind = "invalid_token"
	KindNotFound           Kind = "not_found"
	KindEmailDelivery      Kind = "email_delivery_failed"
	KindConflict           Kind = "conflict"
	KindPasswordMismatch   Kind = "password_mismatch"
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindGeneric            Kind = "generic"
)

// kinds is checked in order; the first sentinel matched by errors.Is wins.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrValidation, KindValidation},
	{ErrInvalidEmail, KindValidation},
	{ErrInvalidUsername, KindValidation},
	{ErrWeakPassword, KindValidation},
	{ErrUserAlreadyExists, KindAlreadyExists},
	{ErrUsernameAlreadyExists, KindAlreadyExists},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrEmailNotVerified, KindNotVerified},
	{ErrAccountLocked, KindLocked},
	{ErrVerificationCodeExpired, KindTokenExpired},
	{ErrResetCodeExpired, KindTokenExpired},
	{ErrRefreshTokenExpired, KindTokenExpired},
	{ErrInvalidToken, KindInvalidToken},
	{ErrInvalidVerificationCode, KindInvalidToken},
	{ErrInvalidResetCode, KindInvalidToken},
	{ErrInvalidRefreshToken, KindInvalidToken},
	{ErrUserNotFound, KindNotFound},
	{ErrTaskNotFound, KindNotFound},
	{ErrEmailDelivery, KindEmailDelivery},
	{ErrEmailAlreadyVerified, KindConflict},
	{ErrPasswordMismatch, KindPasswordMismatch},
	{ErrAuthenticationRequired, KindUnauthenticated},
	{ErrTaskAccessDenied, KindForbidden},
}

// Classify returns the kind of err and the sentinel it matched.
// Unknown errors are KindGeneric with a nil sentinel.
func Classify(err error) (Kind, error) {
	if err == nil {
		return "", nil
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind, k.err
		}
	}
	return KindGeneric, nil
}

// KindOf returns the kind of err.
func KindOf(err error) Kind {
	kind, _ := Classify(err)
	return kind
}

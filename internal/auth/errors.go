package auth

import "errors"

var (
	// ErrInvalidCredentials merges "unknown email" and "wrong password" so
	// responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrAccountInactive is returned for a correct password on a
	// deactivated account.
	ErrAccountInactive = errors.New("auth: account inactive")

	// ErrTokenInvalid merges bad signature, malformed structure and expiry
	// into one outcome so callers cannot probe which check failed.
	ErrTokenInvalid = errors.New("auth: invalid or expired token")

	// ErrResetNotFound means no identity carries a matching reset digest.
	ErrResetNotFound = errors.New("auth: reset token not found")

	// ErrResetExpired means the digest matched but its window has passed.
	ErrResetExpired = errors.New("auth: reset token expired")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)

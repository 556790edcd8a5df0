package auth

import "errors"

// Reasons a URL parameter token does not authenticate. None of these escape
// the provider; the request simply stays anonymous.
var (
	ErrTokenNotFound  = errors.New("session token not found")
	ErrSecretMismatch = errors.New("session token secret mismatch")
	ErrOwnerMissing   = errors.New("session has no owner")
	ErrOwnerInactive  = errors.New("session owner missing or inactive")
)

// ErrInvalidDestination is returned by the issuer for unparseable redirect targets.
var ErrInvalidDestination = errors.New("invalid destination")

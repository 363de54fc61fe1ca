package auth

import "errors"

// Token validation failures. Each one is answered with 401; the middleware
// only tells an expired token apart from the rest.
var (
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
	ErrMissingToken     = errors.New("authentication token is missing")
)

// ErrInvalidConfig is returned by NewJWTService for a secret shorter than
// minSecretLength or a token lifetime under a minute.
var ErrInvalidConfig = errors.New("invalid auth configuration")

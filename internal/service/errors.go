// Package service implements the authentication core: token issuance and
// verification, credential resolution, password and API-key management,
// and usage accounting.  Handlers stay thin; every rule lives here.
package service

import "errors"

// Authentication and authorization failures.  Handlers collapse the
// token-specific kinds into a generic 401 at the boundary; the precise
// kind is only ever written to the server-side log.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidAPIKey      = errors.New("invalid api key")
	ErrForbidden          = errors.New("forbidden")

	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrTokenMalformed = errors.New("token malformed")
	ErrWrongTokenType = errors.New("wrong token type")

	ErrInvalidEmail = errors.New("invalid email address")

	// ErrStorageUnavailable surfaces a storage timeout after read
	// retries are exhausted; it maps to a 503, never a 401.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

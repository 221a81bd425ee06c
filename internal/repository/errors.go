// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios. For
// example, ErrUsernameExists and ErrEmailExists signal which unique
// constraint rejected a registration, while ErrUnavailable marks a
// storage call that timed out or lost its connection and may be
// retried when the read is idempotent.
package repository

import (
	"context"
	"database/sql/driver"
	"errors"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when an insert collides with the unique
// index on users.username.
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists is returned when an insert collides with the unique
// index on users.email.
var ErrEmailExists = errors.New("email already exists")

// ErrAPIKeyExists is returned when an update collides with the unique
// index on users.api_key.  Callers regenerate and retry.
var ErrAPIKeyExists = errors.New("api key already exists")

// ErrUnavailable is returned when storage cannot be reached within the
// caller's deadline.  It maps to a 503 at the HTTP boundary.
var ErrUnavailable = errors.New("storage unavailable")

// mapErr normalizes driver-level failures onto ErrUnavailable so
// services can decide about retries without knowing the engine.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return ErrUnavailable
	}
	return err
}

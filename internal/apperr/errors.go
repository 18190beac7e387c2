// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrSessionClosed is returned for work that lands on a deactivated session.
	ErrSessionClosed = errors.New("session closed")
)

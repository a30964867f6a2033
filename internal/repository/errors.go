package repository

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInitialization is returned when a backend cannot open or create its schema.
	ErrInitialization = errors.New("storage initialization failed")
	// ErrBackendUnavailable wraps failures of the storage engine itself.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	// ErrUnsupported is returned for operations a backend does not offer.
	ErrUnsupported = errors.New("operation not supported by this backend")
	// ErrConflict is returned when a write keeps losing to concurrent writers.
	// The request may be retried as is.
	ErrConflict = errors.New("conflicting concurrent write")

	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrInvalidImage         = errors.New("invalid database image")
)

// IsDomainError reports whether err describes the request rather than the
// storage engine. Such errors are final and never retried elsewhere.
func IsDomainError(err error) bool {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrOrganizationNotFound),
		errors.Is(err, ErrTaskNotFound),
		errors.Is(err, ErrInvalidImage),
		errors.Is(err, ErrUnsupported),
		errors.Is(err, ErrConflict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// Unavailable wraps an engine failure so it matches ErrBackendUnavailable
// and still exposes the cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}

package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when no account matches the ID.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrDuplicateEmail is returned when an account with the same email exists.
	ErrDuplicateEmail = errors.New("tenant email already registered")
)

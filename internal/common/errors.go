// Package common defines shared constants and sentinel errors used across
// client and server layers of fieldkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// ErrTenantMissing is returned when an operation needs tenant scoping but
	// no tenant is active. Callers should ask the user to select a tenant.
	ErrTenantMissing = errors.New("tenant missing: select a tenant")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation signals a duplicate-key failure on a write path.
	// All writes are upserts, so seeing it means a defect, not a runtime state.
	ErrConstraintViolation = errors.New("constraint violation")

	// Sync / transport errors.
	ErrSyncFailed  = errors.New("sync failed")
	ErrUnavailable = errors.New("server unavailable")

	// Validation errors (unresolvable references, malformed ids).
	ErrValidation = errors.New("validation error")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTenantDenied = errors.New("tenant access denied")
)

package errors

import "errors"

// Shared application errors used across repositories and services.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned for failed admin-key checks.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation is returned for invalid input data.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned for state conflicts (e.g. an activation slot
	// exhausted between the eligibility read and the claim).
	ErrConflict = errors.New("resource state conflict")
)

// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist for the acting owner.
	// A note owned by someone else is reported exactly like a missing one.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates bad caller input; see ValidationError for field detail.
	ErrValidation = errors.New("validation failed")

	// ErrDecryptionFailed indicates a stored blob could not be opened with the active key.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrKeyUnavailable indicates the encryption key could not be loaded or persisted.
	ErrKeyUnavailable = errors.New("encryption key unavailable")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrPersistence indicates an underlying storage failure; the mutation was rolled back.
	ErrPersistence = errors.New("persistence failure")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Persistence marks err as a storage failure of op. Nil stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// Package common defines shared constants and sentinel errors used across
// the vault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Lookup errors (document, block, or user absent).
	ErrNotFound = errors.New("not found")

	// Authorization errors: missing/invalid session, or ownership mismatch.
	ErrUnauthorized = errors.New("unauthorized")

	// Identity directory errors.
	ErrDuplicateUser      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRecipientNotFound  = errors.New("recipient not found")

	// Integrity errors: chain validation false, or decrypt/unpad failure.
	ErrIntegrityFailure = errors.New("integrity failure")

	// Checkpoint errors (unparsable ledger snapshot in strict mode).
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint")
)

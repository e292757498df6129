// Package common defines shared sentinel errors used across the escrow and
// vault layers. Callers should use errors.Is to match these values; the
// wrapped message carries the human-readable detail.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// State-machine errors.
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("unauthorized")

	// Allocator precondition errors.
	ErrInvalidState      = errors.New("invalid state")
	ErrOwnershipMismatch = errors.New("ownership mismatch")
	ErrSlotOccupied      = errors.New("slot occupied")
	ErrSlotNotOccupied   = errors.New("slot not occupied")

	// Request-level errors.
	ErrDuplicateRequest = errors.New("duplicate request")

	// Token generation exhausted its collision-retry budget.
	ErrTokenGenerationExhausted = errors.New("token generation exhausted")
)

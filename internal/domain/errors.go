package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	// ErrInsufficientBalance means the fund ledger rejected a hold because
	// the user's spendable balance changed since the pre-check.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOutOfStock means fewer eligible units exist than were requested.
	ErrOutOfStock = errors.New("insufficient stock")

	// ErrLockTimeout means a lease was not acquired within its timeout.
	// Distinct from ErrOutOfStock: this is contention, not a business outcome.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrDuplicateHold means a PENDING hold already exists for the
	// correlation id.
	ErrDuplicateHold = errors.New("duplicate hold")

	// ErrReservationMismatch means the reserved unit count disagrees with
	// the requested count. Signals an internal bug, not a stock shortage.
	ErrReservationMismatch = errors.New("reservation count mismatch")

	ErrIllegalTransition = errors.New("illegal status transition")
)

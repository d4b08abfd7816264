package apperrors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientCredits is returned when a debit would drive a credit
	// balance below zero. The account is left untouched.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrLedgerUnavailable is returned when a ledger mutation could not be
	// confirmed after bounded retries.
	ErrLedgerUnavailable = errors.New("credit ledger unavailable")
	// ErrEmptyResponse is returned when a completed run produced no usable
	// assistant text. Treated as a failure: empty replies are never billed.
	ErrEmptyResponse = errors.New("assistant returned an empty response")
	// ErrTurnInProgress is returned when another turn already holds the
	// per-thread lock.
	ErrTurnInProgress = errors.New("a turn is already in progress for this thread")
)

// Package apperr holds the error kinds shared by the registry and the
// settlement engine. Domain packages wrap these kinds in their own sentinels
// so callers can match either the specific error or its kind with errors.Is.
package apperr

import "errors"

var (
	// ErrUnauthorized is returned when the caller is absent or lacks the required role
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a referenced account or payout does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned for unrecognized or disallowed state values
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidAmount is returned when an amount is outside its allowed range
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAlreadyProcessed is returned when a payout has already left PROCESSING
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrInsufficientBalance is returned when a debit would drive a balance negative
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStorageFailure is returned when the store could not apply an operation.
	// Nothing was applied; the whole operation may be retried.
	ErrStorageFailure = errors.New("storage failure")
)

var kinds = []error{
	ErrUnauthorized,
	ErrNotFound,
	ErrInvalidState,
	ErrInvalidAmount,
	ErrAlreadyProcessed,
	ErrInsufficientBalance,
	ErrStorageFailure,
}

// Kind returns the shared kind err belongs to, or nil if it matches none.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsTyped reports whether err carries one of the shared kinds.
func IsTyped(err error) bool {
	return Kind(err) != nil
}

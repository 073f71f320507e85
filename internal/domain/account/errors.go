package account

import (
	"fmt"

	"github.com/medibook/medibook-api/internal/pkg/apperr"
)

var (
	// ErrAccountNotFound is returned when the account does not exist
	ErrAccountNotFound = fmt.Errorf("%w: account", apperr.ErrNotFound)

	// ErrInvalidStatus is returned for a status outside {VERIFIED, PENDING}
	ErrInvalidStatus = fmt.Errorf("%w: verification status must be VERIFIED or PENDING", apperr.ErrInvalidState)

	// ErrInvalidFilter is returned when listing by a status that is never stored
	ErrInvalidFilter = fmt.Errorf("%w: suspended providers are stored as PENDING", apperr.ErrInvalidState)

	// ErrEmailTaken is returned when creating an account with a used email
	ErrEmailTaken = fmt.Errorf("%w: email already in use", apperr.ErrInvalidState)
)

package settlement

import (
	"fmt"

	"github.com/medibook/medibook-api/internal/pkg/apperr"
)

var (
	ErrPayoutNotFound         = fmt.Errorf("%w: payout request", apperr.ErrNotFound)
	ErrPayoutAlreadyProcessed = fmt.Errorf("%w: payout request is no longer PROCESSING", apperr.ErrAlreadyProcessed)
	ErrInsufficientBalance    = fmt.Errorf("%w: balance is lower than the requested debit", apperr.ErrInsufficientBalance)
	ErrInvalidAmount          = fmt.Errorf("%w: amount must be positive", apperr.ErrInvalidAmount)
	ErrZeroAdjustment         = fmt.Errorf("%w: adjustment delta must not be zero", apperr.ErrInvalidAmount)
	ErrInvalidCategory        = fmt.Errorf("%w: category must be manual_adjustment or service_accrual", apperr.ErrInvalidState)
	ErrAccountNotVerified     = fmt.Errorf("%w: account is not verified", apperr.ErrInvalidState)
	ErrStatementsDisabled     = fmt.Errorf("%w: statement storage is not configured", apperr.ErrInvalidState)
)

package settlement

import (
	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/domain/account"
)

// RequestPayoutRequest is the typed input of requestPayout
type RequestPayoutRequest struct {
	AccountID uuid.UUID `json:"-"`
	Amount    int64     `json:"amount" validate:"gt=0"`
}

// RejectPayoutRequest is the typed input of rejectPayout
type RejectPayoutRequest struct {
	PayoutID uuid.UUID `json:"-"`
	Reason   string    `json:"reason" validate:"max=500"`
}

// AdjustmentRequest posts an administrator balance change
type AdjustmentRequest struct {
	AccountID uuid.UUID `json:"-"`
	Delta     int64     `json:"delta" validate:"ne=0"`
	Reason    string    `json:"reason" validate:"required,max=500"`
	Category  Category  `json:"category" validate:"adjustment_category"`
}

// BalanceResponse is the owner's view of their account balance
type BalanceResponse struct {
	AccountID          uuid.UUID                  `json:"account_id"`
	Balance            int64                      `json:"balance"`
	VerificationStatus account.VerificationStatus `json:"verification_status"`
}

// SettleResponse is returned after a successful settlement
type SettleResponse struct {
	Payout *PayoutRequest `json:"payout"`
	Entry  *LedgerEntry   `json:"entry"`
}

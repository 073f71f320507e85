package account

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus gates whether a provider may transact on the platform
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "PENDING"
	StatusVerified VerificationStatus = "VERIFIED"

	// StatusSuspended names the suspended state of the model. It is never
	// persisted: suspension writes StatusPending as a soft block.
	StatusSuspended VerificationStatus = "SUSPENDED"
)

// RoleProvider is the account role the registry manages
const RoleProvider = "DOCTOR"

// IsTarget reports whether s may be written by SetState
func (s VerificationStatus) IsTarget() bool {
	return s == StatusVerified || s == StatusPending
}

// Account is a provider's credit-holding entity
type Account struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	Email              string             `db:"email" json:"email"`
	DisplayName        string             `db:"display_name" json:"display_name"`
	Role               string             `db:"role" json:"role"`
	Speciality         string             `db:"speciality" json:"speciality"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	Balance            int64              `db:"balance" json:"balance"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// IsVerified returns true if the provider may request payouts
func (a *Account) IsVerified() bool {
	return a.VerificationStatus == StatusVerified
}

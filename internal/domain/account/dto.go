package account

import "github.com/google/uuid"

// SetStateRequest is the typed input of the registry's setState operation
type SetStateRequest struct {
	AccountID uuid.UUID          `json:"-"`
	Status    VerificationStatus `json:"status" validate:"required,verification_target"`
}

// SetActiveRequest suspends or reinstates a provider
type SetActiveRequest struct {
	AccountID uuid.UUID `json:"-"`
	Suspend   *bool     `json:"suspend" validate:"required"`
}

// CreateAccountRequest registers a provider; used by onboarding and seeding
type CreateAccountRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"max=200"`
	Speciality  string `json:"speciality" validate:"max=100"`
}

// StatusResponse is returned after a verification write
type StatusResponse struct {
	AccountID          uuid.UUID          `json:"account_id"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

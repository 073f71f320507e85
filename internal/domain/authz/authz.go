// Package authz is the single authorization gate consulted by the registry and
// the settlement engine at each operation entry point.
package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/pkg/apperr"
)

// Role is the caller's platform role as issued by the identity provider
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

var (
	ErrNoActor  = fmt.Errorf("%w: no authenticated actor", apperr.ErrUnauthorized)
	ErrNotAdmin = fmt.Errorf("%w: administrator role required", apperr.ErrUnauthorized)
	ErrNotOwner = fmt.Errorf("%w: actor does not own this account", apperr.ErrUnauthorized)
)

// Actor is the authenticated caller
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsAdmin reports whether the actor holds the administrator role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Gate resolves the current actor for an operation
type Gate interface {
	CurrentActor(ctx context.Context) (Actor, bool)
}

// RequireActor returns the current actor or ErrNoActor
func RequireActor(ctx context.Context, g Gate) (Actor, error) {
	actor, ok := g.CurrentActor(ctx)
	if !ok || actor.ID == uuid.Nil {
		return Actor{}, ErrNoActor
	}
	return actor, nil
}

// RequireAdmin returns the current actor if it is an administrator
func RequireAdmin(ctx context.Context, g Gate) (Actor, error) {
	actor, err := RequireActor(ctx, g)
	if err != nil {
		return Actor{}, err
	}
	if !actor.IsAdmin() {
		return Actor{}, ErrNotAdmin
	}
	return actor, nil
}

// RequireSelfOrAdmin admits the owner of accountID or any administrator
func RequireSelfOrAdmin(ctx context.Context, g Gate, accountID uuid.UUID) (Actor, error) {
	actor, err := RequireActor(ctx, g)
	if err != nil {
		return Actor{}, err
	}
	if actor.IsAdmin() || actor.ID == accountID {
		return actor, nil
	}
	return Actor{}, ErrNotOwner
}

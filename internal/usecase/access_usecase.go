package usecase

import (
	"context"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
)

// Principal is the identity attached to an authenticated request.
type Principal struct {
	User        *entity.User
	JTI         string
	Permissions entity.PermissionSet
}

// UserID returns the id of the authenticated user.
func (p *Principal) UserID() uuid.UUID {
	return p.User.ID
}

// AccessUsecase is the per-request access guard and permission resolver.
type AccessUsecase interface {
	// Authenticate verifies the bearer token, reloads the identity graph and checks session liveness.
	// Every failure is a generic Unauthorized.
	Authenticate(ctx context.Context, accessToken string) (*Principal, error)

	// Authorize grants when the principal holds the permission and returns Forbidden otherwise.
	Authorize(principal *Principal, permission string) error
}

package usecase

import (
	"context"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
)

// UpdateProfileInput holds optional name changes. Nil fields are left untouched.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
}

// ChangePasswordInput requires the current password alongside the new one.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

// ProfileUsecase is the caller's self-service view of their own identity.
type ProfileUsecase interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	UpdateProfile(ctx context.Context, actor Actor, input UpdateProfileInput) (*entity.User, error)
	// ChangePassword leaves the caller's live sessions untouched.
	ChangePassword(ctx context.Context, actor Actor, input ChangePasswordInput) error
}

package usecase

import (
	"context"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
)

// Actor is the authenticated user performing an administrative operation.
type Actor struct {
	UserID uuid.UUID
	Client ClientInfo
}

// --- Input DTOs ---

// CreateUserInput defines an administrative user creation with an explicit role set.
type CreateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Roles     []string
}

// UpdateUserInput holds optional changes. Nil fields are left untouched.
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Roles     []string // Replaces the role set when non-nil.
	IsActive  *bool
}

// UserUsecase defines the administrative user operations.
// Deactivation and deletion revoke every live session of the target in the same transaction.
type UserUsecase interface {
	CreateUser(ctx context.Context, actor Actor, input CreateUserInput) (*entity.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error)
	UpdateUser(ctx context.Context, actor Actor, id uuid.UUID, input UpdateUserInput) (*entity.User, error)
	DeleteUser(ctx context.Context, actor Actor, id uuid.UUID) error
}

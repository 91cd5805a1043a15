// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserEmailTaken is returned when the unique email constraint rejects a write.
	ErrUserEmailTaken = errors.New("user email already exists")
)

// UserRepository is the credential store. Every Find method returns the user
// with its full role -> permission graph loaded.
type UserRepository interface {
	// FindByID retrieves a user regardless of its active flag.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByIDForUpdate is FindByID holding a row lock until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindActiveByID retrieves a user only when it is active.
	// Reads are pinned to the primary so a fresh deactivation is never missed.
	FindActiveByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindActiveByEmail retrieves an active user by normalized email.
	FindActiveByEmail(ctx context.Context, email string) (*entity.User, error)

	// ExistsByEmail reports whether any user, active or not, owns the email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create persists a new user and its role assignments.
	Create(ctx context.Context, user *entity.User) error

	// UpdateNames persists the first and last name. The active flag and the
	// password hash are never written here.
	UpdateNames(ctx context.Context, user *entity.User) error

	// UpdatePasswordHash replaces the password hash.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error

	// ReplaceRoles replaces the user's role assignments.
	ReplaceRoles(ctx context.Context, userID uuid.UUID, roles []*entity.Role) error

	// Deactivate flips isActive from true to false. It reports whether this call made the transition.
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)

	// Activate flips isActive from false to true. It reports whether this call made the transition.
	Activate(ctx context.Context, id uuid.UUID) (bool, error)

	// TouchLastLogin stamps lastLogin.
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	// Delete removes the user row and its role assignments.
	Delete(ctx context.Context, id uuid.UUID) error
}

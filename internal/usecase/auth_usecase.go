// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"backoffice/internal/domain/entity"
	"backoffice/internal/domain/service"

	"github.com/google/uuid"
)

// ClientInfo identifies the caller of an operation for session records and audit entries.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// --- Input DTOs ---

// RegisterInput defines the data required to self-register.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Client    ClientInfo
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string
	Password string
	Client   ClientInfo
}

// VerifyTwoFactorInput answers a pending two-factor challenge.
type VerifyTwoFactorInput struct {
	ChallengeID uuid.UUID
	Code        string
	Client      ClientInfo
}

// --- Output DTOs ---

// LoginOutput is either a pending two-factor step or an established session.
type LoginOutput struct {
	TwoFactorRequired bool
	ChallengeID       uuid.UUID          // Set only when TwoFactorRequired.
	User              *entity.User       // Set once the session is established.
	Tokens            *service.TokenPair // Set once the session is established.
}

// RefreshOutput carries a new access token for the presented lineage.
type RefreshOutput struct {
	AccessToken string
	JTI         string
}

// AuthUsecase is the auth orchestrator. Every call audits its attempt, success or failure.
type AuthUsecase interface {
	Register(ctx context.Context, input RegisterInput) (*entity.User, error)
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)
	VerifyTwoFactor(ctx context.Context, input VerifyTwoFactorInput) (*LoginOutput, error)
	Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*RefreshOutput, error)
	Logout(ctx context.Context, userID uuid.UUID, jti string, client ClientInfo) error
	LogoutAll(ctx context.Context, userID uuid.UUID, client ClientInfo) (int64, error)
}

// ChallengeUsecase is the two-factor challenge store. It knows nothing about tokens.
type ChallengeUsecase interface {
	// Create supersedes the user's pending challenges, dispatches a fresh code and returns the challenge id.
	Create(ctx context.Context, user *entity.User) (uuid.UUID, error)

	// Verify checks the code and returns the id of the user who passed.
	Verify(ctx context.Context, challengeID uuid.UUID, code string) (uuid.UUID, error)
}

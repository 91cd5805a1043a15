package handler

import (
	"net/http"

	"backoffice/internal/delivery/api/response"
	deliverycontext "backoffice/internal/delivery/context"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
}

// AuthHandler serves the client session API under /auth.
type AuthHandler struct {
	authUC usecase.AuthUsecase
}

// NewAuthHandler is the constructor for AuthHandler
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{authUC: params.AuthUC}
}

// RegisterRequest represents the request body for self-registration
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the request body for refreshing an access token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// VerifyTwoFactorRequest answers a pending two-factor challenge
type VerifyTwoFactorRequest struct {
	TfaID string `json:"tfaId" validate:"required,uuid"`
	Code  string `json:"code" validate:"required,numeric,max=12"`
}

// LoginResponse is either the two-factor step or an established session.
type LoginResponse struct {
	TfaRequired  bool      `json:"tfaRequired,omitempty"`
	TfaID        string    `json:"tfaId,omitempty"`
	User         *UserView `json:"user,omitempty"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
}

// RefreshResponse carries the new access token
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// LogoutAllResponse reports how many sessions were revoked
type LogoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

// Register handles self-registration with the default role
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authUC.Register(c.Request().Context(), usecase.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Client:    deliverycontext.ClientInfo(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, newUserView(user))
}

// Login handles password login
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	out, err := h.authUC.Login(c.Request().Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Client:   deliverycontext.ClientInfo(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newLoginResponse(out))
}

// VerifyTwoFactor handles the second login step
func (h *AuthHandler) VerifyTwoFactor(c echo.Context) error {
	var req VerifyTwoFactorRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	challengeID, err := uuid.Parse(req.TfaID)
	if err != nil {
		return domainerrors.ErrChallengeNotFound
	}

	out, err := h.authUC.VerifyTwoFactor(c.Request().Context(), usecase.VerifyTwoFactorInput{
		ChallengeID: challengeID,
		Code:        req.Code,
		Client:      deliverycontext.ClientInfo(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newLoginResponse(out))
}

// Refresh exchanges a refresh token for a new access token in the same lineage
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	out, err := h.authUC.Refresh(c.Request().Context(), req.RefreshToken, deliverycontext.ClientInfo(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, RefreshResponse{AccessToken: out.AccessToken})
}

// Logout revokes the session behind the presented access token
func (h *AuthHandler) Logout(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	if err := h.authUC.Logout(c.Request().Context(), principal.UserID(), principal.JTI, deliverycontext.ClientInfo(c)); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every live session of the caller
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	revoked, err := h.authUC.LogoutAll(c.Request().Context(), principal.UserID(), deliverycontext.ClientInfo(c))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, LogoutAllResponse{Revoked: revoked})
}

// Me returns the caller's identity with its flattened permissions
func (h *AuthHandler) Me(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	view := newUserView(principal.User)
	view.Permissions = principal.Permissions.Names()

	return response.Success(c, http.StatusOK, view)
}

func newLoginResponse(out *usecase.LoginOutput) LoginResponse {
	if out.TwoFactorRequired {
		return LoginResponse{TfaRequired: true, TfaID: out.ChallengeID.String()}
	}

	return LoginResponse{
		User:         newUserView(out.User),
		AccessToken:  out.Tokens.AccessToken,
		RefreshToken: out.Tokens.RefreshToken,
	}
}

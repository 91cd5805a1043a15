package handler

import (
	"net/http"
	"strconv"

	"backoffice/internal/delivery/api/response"
	deliverycontext "backoffice/internal/delivery/context"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// SessionHandlerParams holds dependencies for SessionHandler, injected by Fx.
type SessionHandlerParams struct {
	fx.In

	SessionUC usecase.SessionUsecase
	AuthUC    usecase.AuthUsecase
}

// SessionHandler lets a caller inspect and revoke their own sessions.
type SessionHandler struct {
	sessionUC usecase.SessionUsecase
	authUC    usecase.AuthUsecase
}

// NewSessionHandler is the constructor for SessionHandler
func NewSessionHandler(params SessionHandlerParams) *SessionHandler {
	return &SessionHandler{
		sessionUC: params.SessionUC,
		authUC:    params.AuthUC,
	}
}

// ListSessions returns the caller's live sessions newest-first
func (h *SessionHandler) ListSessions(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	page, err := queryInt(c, "page")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}

	result, err := h.sessionUC.ListSessions(c.Request().Context(), principal.UserID(), principal.JTI, page, limit)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, response.Page{
		Items: newSessionViews(result.Items),
		Total: result.Total,
		Page:  result.Page,
		Limit: result.Limit,
	})
}

// RevokeSession revokes one of the caller's live sessions
func (h *SessionHandler) RevokeSession(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return domainerrors.ErrUnauthorized
	}

	sessionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.sessionUC.RevokeSession(c.Request().Context(), principal.UserID(), sessionID, deliverycontext.ClientInfo(c)); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// RevokeAllSessions revokes every live session of the caller, the same as logout-all
func (h *SessionHandler) RevokeAllSessions(c echo.Context) error {
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

// queryInt reads an optional integer query parameter. Missing means zero, which the usecase defaults.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domainerrors.ErrValidationFailed.WithDetails(name + ": must be an integer")
	}

	return value, nil
}

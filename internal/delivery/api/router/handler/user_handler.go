package handler

import (
	"net/http"

	"backoffice/internal/delivery/api/response"
	deliverycontext "backoffice/internal/delivery/context"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// UserHandlerParams holds dependencies for UserHandler, injected by Fx.
type UserHandlerParams struct {
	fx.In

	UserUC usecase.UserUsecase
}

// UserHandler serves the RBAC-gated user administration routes.
type UserHandler struct {
	userUC usecase.UserUsecase
}

// NewUserHandler is the constructor for UserHandler
func NewUserHandler(params UserHandlerParams) *UserHandler {
	return &UserHandler{userUC: params.UserUC}
}

// CreateUserRequest represents the request body for an administrative user creation
type CreateUserRequest struct {
	FirstName string   `json:"firstName" validate:"required,max=100"`
	LastName  string   `json:"lastName" validate:"max=100"`
	Email     string   `json:"email" validate:"required,email,max=255"`
	Password  string   `json:"password" validate:"required,min=8,max=72"`
	Roles     []string `json:"roles" validate:"required,min=1,dive,required"`
}

// UpdateUserRequest holds optional changes. Absent fields are left untouched.
type UpdateUserRequest struct {
	FirstName *string  `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string  `json:"lastName" validate:"omitempty,max=100"`
	Roles     []string `json:"roles" validate:"omitempty,min=1,dive,required"`
	IsActive  *bool    `json:"isActive"`
}

// CreateUser handles administrative user creation
func (h *UserHandler) CreateUser(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req CreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userUC.CreateUser(c.Request().Context(), actor, usecase.CreateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Roles:     req.Roles,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, newUserView(user))
}

// GetUser returns one user
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	user, err := h.userUC.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newUserView(user))
}

// UpdateUser applies a partial update
func (h *UserHandler) UpdateUser(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userUC.UpdateUser(c.Request().Context(), actor, id, usecase.UpdateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Roles:     req.Roles,
		IsActive:  req.IsActive,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, newUserView(user))
}

// DeleteUser hard deletes a user and revokes their sessions
func (h *UserHandler) DeleteUser(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.userUC.DeleteUser(c.Request().Context(), actor, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func currentActor(c echo.Context) (usecase.Actor, error) {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return usecase.Actor{}, domainerrors.ErrUnauthorized
	}

	return usecase.Actor{UserID: principal.UserID(), Client: deliverycontext.ClientInfo(c)}, nil
}

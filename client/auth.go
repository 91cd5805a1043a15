package client

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// User is the identity returned by the service.
type User struct {
	ID          uuid.UUID  `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	Roles       []string   `json:"roles"`
	Permissions []string   `json:"permissions,omitempty"`
	IsActive    bool       `json:"isActive"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
}

// LoginResult is either a pending two-factor step or an established session.
type LoginResult struct {
	TfaRequired bool   `json:"tfaRequired"`
	TfaID       string `json:"tfaId"`
	User        *User  `json:"user"`
}

type loginResponse struct {
	LoginResult

	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates an account with the default role. It does not log in.
func (c *Client) Register(ctx context.Context, firstName, lastName, email, password string) (*User, error) {
	var user User
	err := c.post(ctx, "/auth/register", map[string]string{
		"firstName": firstName,
		"lastName":  lastName,
		"email":     email,
		"password":  password,
	}, &user)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Login authenticates identity with a password. When two-factor is enabled the result
// carries the challenge id for VerifyTwoFactor and no tokens are stored yet.
func (c *Client) Login(ctx context.Context, identity, email, password string) (*LoginResult, error) {
	var resp loginResponse
	if err := c.post(ctx, "/auth/login", map[string]string{"email": email, "password": password}, &resp); err != nil {
		return nil, err
	}

	return c.establish(identity, &resp), nil
}

// VerifyTwoFactor answers the challenge from Login and stores the issued tokens.
func (c *Client) VerifyTwoFactor(ctx context.Context, identity, tfaID, code string) (*LoginResult, error) {
	var resp loginResponse
	if err := c.post(ctx, "/auth/tfa/verify", map[string]string{"tfaId": tfaID, "code": code}, &resp); err != nil {
		return nil, err
	}

	return c.establish(identity, &resp), nil
}

func (c *Client) establish(identity string, resp *loginResponse) *LoginResult {
	if !resp.TfaRequired && resp.AccessToken != "" {
		c.Forget(identity)
		c.SetTokens(identity, Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	}

	return &resp.LoginResult
}

// Me reloads the identity with its flattened permissions.
func (c *Client) Me(ctx context.Context, identity string) (*User, error) {
	var user User
	if err := c.Do(ctx, identity, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// Logout revokes the identity's current session and forgets its tokens.
func (c *Client) Logout(ctx context.Context, identity string) error {
	defer c.Forget(identity)

	return c.Do(ctx, identity, http.MethodPost, "/auth/logout", nil, nil)
}

// LogoutAll revokes every session of the identity and returns how many were live.
func (c *Client) LogoutAll(ctx context.Context, identity string) (int64, error) {
	defer c.Forget(identity)

	var out struct {
		Revoked int64 `json:"revoked"`
	}
	if err := c.Do(ctx, identity, http.MethodPost, "/auth/logout-all", nil, &out); err != nil {
		return 0, err
	}

	return out.Revoked, nil
}

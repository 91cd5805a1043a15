package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"backoffice/config"
	apimiddleware "backoffice/internal/delivery/api/middleware"
	"backoffice/internal/delivery/api/router"
	"backoffice/internal/delivery/api/router/handler"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/entity"
	"backoffice/internal/domain/service"
	"backoffice/internal/infra/metrics"
	"backoffice/internal/infra/ratelimit"
	"backoffice/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccess struct {
	principals map[string]*usecase.Principal
}

func (s *stubAccess) Authenticate(_ context.Context, token string) (*usecase.Principal, error) {
	principal, ok := s.principals[token]
	if !ok {
		return nil, domainerrors.ErrUnauthorized.WrapMessage("unknown token")
	}

	return principal, nil
}

func (s *stubAccess) Authorize(principal *usecase.Principal, permission string) error {
	if principal == nil {
		return domainerrors.ErrUnauthorized
	}
	if !principal.Permissions.Has(permission) {
		return domainerrors.ErrForbidden.WrapMessage(permission)
	}

	return nil
}

type stubAuth struct {
	usecase.AuthUsecase

	login     func(usecase.LoginInput) (*usecase.LoginOutput, error)
	loggedOut []string
}

func (s *stubAuth) Login(_ context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	return s.login(input)
}

func (s *stubAuth) Logout(_ context.Context, _ uuid.UUID, jti string, _ usecase.ClientInfo) error {
	s.loggedOut = append(s.loggedOut, jti)

	return nil
}

type stubSessions struct {
	usecase.SessionUsecase

	page *usecase.SessionPage
}

func (s *stubSessions) ListSessions(_ context.Context, _ uuid.UUID, currentJTI string, page, limit int) (*usecase.SessionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	for i := range s.page.Items {
		s.page.Items[i].Current = s.page.Items[i].Session.JTI == currentJTI
	}
	s.page.Page, s.page.Limit = page, limit

	return s.page, nil
}

type stubUsers struct {
	usecase.UserUsecase

	get func(uuid.UUID) (*entity.User, error)
}

func (s *stubUsers) GetUser(_ context.Context, id uuid.UUID) (*entity.User, error) {
	return s.get(id)
}

type stubProfile struct {
	usecase.ProfileUsecase

	changed []usecase.ChangePasswordInput
}

func (s *stubProfile) ChangePassword(_ context.Context, _ usecase.Actor, input usecase.ChangePasswordInput) error {
	if input.CurrentPassword != "old-password" {
		return domainerrors.ErrCurrentPasswordMismatch
	}
	s.changed = append(s.changed, input)

	return nil
}

type testServer struct {
	echo     *echo.Echo
	auth     *stubAuth
	users    *stubUsers
	sessions *stubSessions
	profile  *stubProfile
	metrics  *metrics.Metrics
}

func principalWith(jti string, permissions ...string) *usecase.Principal {
	role := &entity.Role{Name: "test"}
	for _, name := range permissions {
		role.Permissions = append(role.Permissions, &entity.Permission{Name: name})
	}
	user := &entity.User{
		ID:        uuid.New(),
		FirstName: "Ada",
		Email:     "ada@example.com",
		Roles:     []*entity.Role{role},
		IsActive:  true,
	}

	return &usecase.Principal{User: user, JTI: jti, Permissions: user.Permissions()}
}

func newTestServer(t *testing.T, limit int, principals map[string]*usecase.Principal) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.Metrics = &config.MetricsConfig{Enabled: true}
	cfg.ApplyDefaults()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	ts := &testServer{
		auth:     &stubAuth{},
		users:    &stubUsers{},
		sessions: &stubSessions{page: &usecase.SessionPage{}},
		profile:  &stubProfile{},
		metrics:  m,
	}
	access := &stubAccess{principals: principals}

	params := router.RouterParams{
		AuthHandler:    handler.NewAuthHandler(handler.AuthHandlerParams{AuthUC: ts.auth}),
		SessionHandler: handler.NewSessionHandler(handler.SessionHandlerParams{SessionUC: ts.sessions, AuthUC: ts.auth}),
		ProfileHandler: handler.NewProfileHandler(handler.ProfileHandlerParams{ProfileUC: ts.profile}),
		UserHandler:    handler.NewUserHandler(handler.UserHandlerParams{UserUC: ts.users}),
		AuthMiddleware: apimiddleware.NewAuthMiddleware(apimiddleware.AuthMiddlewareParams{Access: access}),
		RateLimitMiddleware: apimiddleware.NewRateLimitMiddleware(apimiddleware.RateLimitMiddlewareParams{
			Limiter: ratelimit.NewMemoryLimiter(limit, time.Hour),
			Metrics: m,
			Logger:  logger,
		}),
		Metrics: m,
		Config:  cfg,
	}
	ts.echo = newEcho(cfg, logger, params)

	return ts
}

func (ts *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)

	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	return env
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, 10, nil)

	rec := ts.do(http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestServer_RequestIDSanitized(t *testing.T) {
	ts := newTestServer(t, 10, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "trace-123.abc")
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123.abc", rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "bad id\nwith newline")
	rec = httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	_, err := uuid.Parse(rec.Header().Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestServer_LoginEstablishesSession(t *testing.T) {
	ts := newTestServer(t, 10, nil)
	user := &entity.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "secret-hash", IsActive: true}
	ts.auth.login = func(input usecase.LoginInput) (*usecase.LoginOutput, error) {
		assert.Equal(t, "ada@example.com", input.Email)
		assert.NotEmpty(t, input.Client.IP)

		return &usecase.LoginOutput{
			User:   user,
			Tokens: &service.TokenPair{AccessToken: "access", RefreshToken: "refresh"},
		}, nil
	}

	rec := ts.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body handler.LoginResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.False(t, body.TfaRequired)
	assert.Equal(t, "access", body.AccessToken)
	assert.Equal(t, "refresh", body.RefreshToken)
	assert.Equal(t, user.ID, body.User.ID)
	assert.NotContains(t, rec.Body.String(), "secret-hash")
}

func TestServer_LoginTwoFactorStep(t *testing.T) {
	ts := newTestServer(t, 10, nil)
	challengeID := uuid.New()
	ts.auth.login = func(usecase.LoginInput) (*usecase.LoginOutput, error) {
		return &usecase.LoginOutput{TwoFactorRequired: true, ChallengeID: challengeID}, nil
	}

	rec := ts.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t, `{"tfaRequired":true,"tfaId":"`+challengeID.String()+`"}`, string(decode(t, rec).Data))
}

func TestServer_ErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, 10, nil)

	t.Run("validation failure carries details", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/auth/login", `{"email":"not-an-email"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decode(t, rec)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
		assert.Contains(t, env.Error.Details, "email: must be a valid email address")
		assert.Contains(t, env.Error.Details, "password: is required")
		assert.Equal(t, rec.Header().Get("X-Request-Id"), env.Meta.RequestID)
	})

	t.Run("credential failure is a bare 401", func(t *testing.T) {
		ts.auth.login = func(usecase.LoginInput) (*usecase.LoginOutput, error) {
			return nil, domainerrors.ErrInvalidCredentials.WrapMessage("password mismatch")
		}
		rec := ts.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"pw"}`, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
		assert.Nil(t, env.Error.Details)
		assert.NotContains(t, rec.Body.String(), "password mismatch")
	})

	t.Run("unknown errors are hidden", func(t *testing.T) {
		ts.auth.login = func(usecase.LoginInput) (*usecase.LoginOutput, error) {
			return nil, errors.New("pq: connection refused")
		}
		rec := ts.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"pw"}`, "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INTERNAL_ERROR", decode(t, rec).Error.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestServer_AccessGuard(t *testing.T) {
	reader := principalWith("jti-reader", "user:read", "session:read")
	ts := newTestServer(t, 10, map[string]*usecase.Principal{"reader-token": reader})
	target := &entity.User{ID: uuid.New(), Email: "target@example.com"}
	ts.users.get = func(id uuid.UUID) (*entity.User, error) {
		if id != target.ID {
			return nil, domainerrors.ErrUserNotFound
		}

		return target, nil
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{name: "missing token", method: http.MethodGet, path: "/auth/me", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "unknown token", method: http.MethodGet, path: "/auth/me", token: "forged", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "granted read", method: http.MethodGet, path: "/users/" + target.ID.String(), token: "reader-token", status: http.StatusOK},
		{name: "missing grant", method: http.MethodDelete, path: "/users/" + target.ID.String(), token: "reader-token", status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "malformed id", method: http.MethodGet, path: "/users/not-a-uuid", token: "reader-token", status: http.StatusBadRequest, code: "VALIDATION_FAILED"},
		{name: "unknown user", method: http.MethodGet, path: "/users/" + uuid.NewString(), token: "reader-token", status: http.StatusNotFound, code: "USER_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.method, tt.path, "", tt.token)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decode(t, rec).Error.Code)
			}
		})
	}
}

func TestServer_MeStampsPermissionsVersion(t *testing.T) {
	principal := principalWith("jti-1", "user:read")
	ts := newTestServer(t, 10, map[string]*usecase.Principal{"token": principal})

	rec := ts.do(http.MethodGet, "/auth/me", "", "token")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, principal.Permissions.Version(), rec.Header().Get("X-Permissions-Version"))

	var me handler.UserView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &me))
	assert.Equal(t, []string{"user:read"}, me.Permissions)
	assert.Equal(t, principal.UserID(), me.ID)
}

func TestServer_LogoutUsesTokenLineage(t *testing.T) {
	principal := principalWith("jti-logout")
	ts := newTestServer(t, 10, map[string]*usecase.Principal{"token": principal})

	rec := ts.do(http.MethodPost, "/auth/logout", "", "token")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"jti-logout"}, ts.auth.loggedOut)
}

func TestServer_ListSessionsFlagsCurrent(t *testing.T) {
	principal := principalWith("jti-b", "session:read")
	ts := newTestServer(t, 10, map[string]*usecase.Principal{"token": principal})
	ts.sessions.page = &usecase.SessionPage{
		Items: []usecase.SessionView{
			{Session: &entity.Session{ID: uuid.New(), JTI: "jti-b"}},
			{Session: &entity.Session{ID: uuid.New(), JTI: "jti-a"}},
		},
		Total: 2,
	}

	rec := ts.do(http.MethodGet, "/sessions?page=1&limit=5", "", "token")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page struct {
		Items []handler.SessionView `json:"items"`
		Total int64                 `json:"total"`
		Limit int                   `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &page))
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].Current)
	assert.False(t, page.Items[1].Current)
	assert.Equal(t, 5, page.Limit)

	rec = ts.do(http.MethodGet, "/sessions?page=abc", "", "token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RateLimitsAuthRoutes(t *testing.T) {
	ts := newTestServer(t, 2, nil)
	ts.auth.login = func(usecase.LoginInput) (*usecase.LoginOutput, error) {
		return nil, domainerrors.ErrInvalidCredentials
	}
	body := `{"email":"ada@example.com","password":"pw"}`

	for range 2 {
		rec := ts.do(http.MethodPost, "/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := ts.do(http.MethodPost, "/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, rec).Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Unlimited routes are unaffected
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "", "").Code)

	metricsRec := ts.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), `backoffice_rate_limit_rejections_total{route="/auth/login"} 1`)
}

func TestServer_RateLimitIgnoresSpoofedForwardingHeaders(t *testing.T) {
	ts := newTestServer(t, 2, nil)
	ts.auth.login = func(usecase.LoginInput) (*usecase.LoginOutput, error) {
		return nil, domainerrors.ErrInvalidCredentials
	}
	body := `{"email":"ada@example.com","password":"pw"}`

	codes := make([]int, 0, 4)
	for i := range 4 {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXForwardedFor, "198.51.100."+strconv.Itoa(i+1))
		req.Header.Set(echo.HeaderXRealIP, "203.0.113."+strconv.Itoa(i+1))
		rec := httptest.NewRecorder()
		ts.echo.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{
		http.StatusUnauthorized,
		http.StatusUnauthorized,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes)
}

func TestNewIPExtractor(t *testing.T) {
	newReq := func(remote, xff string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set(echo.HeaderXForwardedFor, xff)
		}

		return req
	}

	t.Run("no trusted proxies uses the peer", func(t *testing.T) {
		extract := newIPExtractor(nil)
		assert.Equal(t, "192.0.2.10", extract(newReq("192.0.2.10:4711", "198.51.100.7")))
	})

	t.Run("trusted proxy forwards the client", func(t *testing.T) {
		extract := newIPExtractor([]string{"10.0.0.0/8"})
		assert.Equal(t, "198.51.100.7", extract(newReq("10.1.2.3:4711", "198.51.100.7")))
	})

	t.Run("untrusted peer cannot inject a client", func(t *testing.T) {
		extract := newIPExtractor([]string{"10.0.0.0/8"})
		assert.Equal(t, "192.0.2.10", extract(newReq("192.0.2.10:4711", "198.51.100.7")))
	})
}

func TestServer_ChangePasswordNeedsOnlyAuthentication(t *testing.T) {
	principal := principalWith("jti-pw")
	ts := newTestServer(t, 10, map[string]*usecase.Principal{"token": principal})

	rec := ts.do(http.MethodPost, "/profile/password", `{"currentPassword":"old-password","newPassword":"new-password"}`, "token")
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.Len(t, ts.profile.changed, 1)

	rec = ts.do(http.MethodPost, "/profile/password", `{"currentPassword":"wrong","newPassword":"new-password"}`, "token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CURRENT_PASSWORD", decode(t, rec).Error.Code)

	rec = ts.do(http.MethodPost, "/profile/password", `{"currentPassword":"old-password","newPassword":"short"}`, "token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/profile/password", `{"currentPassword":"old-password","newPassword":"new-password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, ts.profile.changed, 1)
}

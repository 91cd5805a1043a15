package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backoffice/config"
	"backoffice/internal/domain/constants"
	"backoffice/internal/domain/service"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, address, code string, ttl time.Duration) error {
	return m.Called(ctx, address, code, ttl).Error(0)
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestPushHandler(t *testing.T, provider, env string) (*PushHandler, *mockMailer) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailer := &mockMailer{}
	codeMailer := NewCodeMailer(CodeMailerParams{Mailer: mailer, Logger: logger})
	codeMailer.now = func() time.Time { return fixedNow }

	cfg := &config.Config{Notifier: &config.NotifierConfig{Provider: provider}}
	cfg.Env.Env = env

	h := NewPushHandler(PushHandlerParams{Config: cfg, Logger: logger, Mailer: codeMailer})
	t.Cleanup(func() { mailer.AssertExpectations(t) })

	return h, mailer
}

func pushBody(t *testing.T, event *service.TwoFactorCodeEvent) string {
	t.Helper()

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var msg PubSubMessage
	msg.Message.Data = base64.StdEncoding.EncodeToString(data)
	msg.Message.MessageID = "1"
	msg.Message.Attributes = map[string]string{"request_id": "req-1"}
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	return string(body)
}

func firePush(h *PushHandler, body, authorization string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/push", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	_ = h.HandlePush(e.NewContext(req, rec))

	return rec
}

func freshEvent() *service.TwoFactorCodeEvent {
	return &service.TwoFactorCodeEvent{
		EventID:    "evt-1",
		Address:    "ada@example.com",
		Code:       "123456",
		TTLSeconds: 300,
		IssuedAt:   fixedNow.Add(-time.Minute).Unix(),
	}
}

func TestPushHandler_DeliversWithRemainingTTL(t *testing.T) {
	h, mailer := newTestPushHandler(t, constants.NotifierProviderLocal, constants.EnvDevelopment)
	mailer.On("Send", mock.Anything, "ada@example.com", "123456", 4*time.Minute).Return(nil).Once()

	rec := firePush(h, pushBody(t, freshEvent()), "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPushHandler_SendFailureIsRetried(t *testing.T) {
	h, mailer := newTestPushHandler(t, constants.NotifierProviderLocal, constants.EnvDevelopment)
	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(service.ErrDeliveryFailed).Once()

	rec := firePush(h, pushBody(t, freshEvent()), "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPushHandler_DropsUndeliverableEvents(t *testing.T) {
	h, _ := newTestPushHandler(t, constants.NotifierProviderLocal, constants.EnvDevelopment)

	expired := freshEvent()
	expired.IssuedAt = fixedNow.Add(-time.Hour).Unix()
	assert.Equal(t, http.StatusOK, firePush(h, pushBody(t, expired), "").Code)

	incomplete := freshEvent()
	incomplete.Address = ""
	assert.Equal(t, http.StatusOK, firePush(h, pushBody(t, incomplete), "").Code)

	assert.Equal(t, http.StatusBadRequest, firePush(h, `{"message":{"data":"%%%"}}`, "").Code)
}

func TestPushHandler_VerifiesGoogleToken(t *testing.T) {
	h, mailer := newTestPushHandler(t, constants.NotifierProviderGoogle, constants.EnvProduction)
	require.True(t, h.verifyPushAuth)

	var audience string
	h.validateToken = func(_ context.Context, token, aud string) (*idtoken.Payload, error) {
		audience = aud
		switch token {
		case "good":
			return &idtoken.Payload{Issuer: "https://accounts.google.com", Claims: map[string]any{"email_verified": true}}, nil
		case "foreign":
			return &idtoken.Payload{Issuer: "https://evil.example.com"}, nil
		default:
			return nil, errors.New("bad signature")
		}
	}

	body := pushBody(t, freshEvent())
	assert.Equal(t, http.StatusUnauthorized, firePush(h, body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, firePush(h, body, "Bearer forged").Code)
	assert.Equal(t, http.StatusUnauthorized, firePush(h, body, "Bearer foreign").Code)

	mailer.On("Send", mock.Anything, "ada@example.com", "123456", mock.Anything).Return(nil).Once()
	assert.Equal(t, http.StatusOK, firePush(h, body, "Bearer good").Code)
	assert.Equal(t, "http://example.com/push", audience)
}

func TestPushHandler_SkipsVerificationInDevelopment(t *testing.T) {
	h, _ := newTestPushHandler(t, constants.NotifierProviderGoogle, constants.EnvDevelopment)

	assert.False(t, h.verifyPushAuth)
}

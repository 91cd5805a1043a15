package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice/config"
	"backoffice/internal/domain/constants"
	"backoffice/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocalHTTPPublisher_PostsPushEnvelope(t *testing.T) {
	var got PushMessage
	var gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get("X-Request-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, newDiscardLogger())
	event := &service.TwoFactorCodeEvent{
		RequestID:  "req-1",
		EventID:    "evt-1",
		Address:    "admin@example.com",
		Code:       "123456",
		TTLSeconds: 300,
	}

	require.NoError(t, publisher.PublishTwoFactorCode(context.Background(), event))
	assert.Equal(t, "req-1", gotRequestID)
	assert.Equal(t, "evt-1", got.Message.MessageID)
	assert.Equal(t, "evt-1", got.Message.Attributes["event_id"])
	assert.NotContains(t, got.Message.Attributes, "code")

	raw, err := base64.StdEncoding.DecodeString(got.Message.Data)
	require.NoError(t, err)

	var decoded service.TwoFactorCodeEvent
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *event, decoded)
}

func TestLocalHTTPPublisher_Non2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, newDiscardLogger())
	err := publisher.PublishTwoFactorCode(context.Background(), &service.TwoFactorCodeEvent{EventID: "evt"})
	assert.Error(t, err)
}

func TestNewEventPublisher_LogProviderIsNoop(t *testing.T) {
	cfg := &config.Config{Notifier: &config.NotifierConfig{Provider: constants.NotifierProviderLog}}

	publisher, err := NewEventPublisher(PublisherParams{
		Lc:     fxtest.NewLifecycle(t),
		Ctx:    context.Background(),
		Config: cfg,
		Logger: newDiscardLogger(),
	})
	require.NoError(t, err)
	assert.IsType(t, &noopPublisher{}, publisher)
	assert.NoError(t, publisher.PublishTwoFactorCode(context.Background(), &service.TwoFactorCodeEvent{EventID: "evt"}))
}

func TestNewEventPublisher_UnknownProvider(t *testing.T) {
	cfg := &config.Config{Notifier: &config.NotifierConfig{Provider: "carrier-pigeon"}}

	_, err := NewEventPublisher(PublisherParams{
		Lc:     fxtest.NewLifecycle(t),
		Ctx:    context.Background(),
		Config: cfg,
		Logger: newDiscardLogger(),
	})
	assert.Error(t, err)
}

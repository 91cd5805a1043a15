package impl

import (
	"io"
	"log/slog"
	"time"

	"backoffice/config"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(twoFactor bool) *config.Config {
	cfg := &config.Config{
		SecretKey: config.SecretKey{
			Access:  "access-secret-for-tests-0123456789abcdef",
			Refresh: "refresh-secret-for-tests-0123456789abcdef",
		},
		Auth: &config.AuthConfig{
			BcryptCost:       4,
			AccessTokenTTL:   15 * time.Minute,
			RefreshTokenTTL:  7 * 24 * time.Hour,
			DefaultRole:      "user",
			DatastoreTimeout: time.Second,
		},
		TwoFactor: &config.TwoFactorConfig{
			Enabled:         twoFactor,
			CodeTTL:         5 * time.Minute,
			MaxAttempts:     3,
			CodeLength:      6,
			CodeHashCost:    4,
			NotifierTimeout: time.Second,
		},
	}
	cfg.Env.ServiceName = "backoffice-test"

	return cfg
}

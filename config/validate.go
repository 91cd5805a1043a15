package config

import (
	"net"
	"strings"
	"time"

	"backoffice/internal/domain/constants"

	"github.com/pkg/errors"
)

// MinSecretLength is the shortest signing secret the service accepts.
const MinSecretLength = 32

const (
	defaultBcryptCost       = 12
	defaultAccessTokenTTL   = 15 * time.Minute
	defaultRefreshTokenTTL  = 7 * 24 * time.Hour
	defaultDatastoreTimeout = 5 * time.Second

	defaultCodeTTL         = 5 * time.Minute
	defaultMaxAttempts     = 5
	defaultCodeLength      = 6
	defaultCodeHashCost    = 10
	defaultNotifierTimeout = 10 * time.Second

	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = 15 * time.Minute

	defaultReaperInterval   = 10 * time.Minute
	defaultRevokedRetention = 24 * time.Hour

	defaultMetricsPath = "/metrics"
)

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.HTTP.MaxRequestBodySize) == "" {
		c.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = defaultBcryptCost
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = defaultAccessTokenTTL
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = defaultRefreshTokenTTL
	}
	if c.Auth.DefaultRole == "" {
		c.Auth.DefaultRole = constants.RoleUser
	}
	if c.Auth.DatastoreTimeout == 0 {
		c.Auth.DatastoreTimeout = defaultDatastoreTimeout
	}

	if c.TwoFactor == nil {
		c.TwoFactor = &TwoFactorConfig{}
	}
	if c.TwoFactor.CodeTTL == 0 {
		c.TwoFactor.CodeTTL = defaultCodeTTL
	}
	if c.TwoFactor.MaxAttempts == 0 {
		c.TwoFactor.MaxAttempts = defaultMaxAttempts
	}
	if c.TwoFactor.CodeLength == 0 {
		c.TwoFactor.CodeLength = defaultCodeLength
	}
	if c.TwoFactor.CodeHashCost == 0 {
		c.TwoFactor.CodeHashCost = defaultCodeHashCost
	}
	if c.TwoFactor.NotifierTimeout == 0 {
		c.TwoFactor.NotifierTimeout = defaultNotifierTimeout
	}

	if c.RateLimit == nil {
		c.RateLimit = &RateLimitConfig{}
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = constants.RateLimitBackendMemory
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = defaultRateLimitRequests
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = defaultRateLimitWindow
	}

	if c.Reaper == nil {
		c.Reaper = &ReaperConfig{}
	}
	if c.Reaper.Interval == 0 {
		c.Reaper.Interval = defaultReaperInterval
	}
	if c.Reaper.RevokedRetention == 0 {
		c.Reaper.RevokedRetention = defaultRevokedRetention
	}

	if c.Metrics != nil && c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env.Env, constants.EnvProduction)
}

// Validate checks the startup preconditions. A failure here must stop the process.
func (c *Config) Validate() error {
	if err := validateSecret("access", c.SecretKey.Access); err != nil {
		return err
	}
	if err := validateSecret("refresh", c.SecretKey.Refresh); err != nil {
		return err
	}
	if c.SecretKey.Access == c.SecretKey.Refresh {
		return errors.New("access and refresh secrets must differ")
	}

	if c.Auth == nil {
		return errors.New("auth configuration is required")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Auth.AccessTokenTTL >= c.Auth.RefreshTokenTTL {
		return errors.New("access token TTL must be shorter than refresh token TTL")
	}

	for _, cidr := range c.HTTP.TrustedProxies {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			return errors.Errorf("invalid trusted proxy range %q", cidr)
		}
	}

	if c.TwoFactor != nil && c.TwoFactor.Enabled {
		if err := c.validateTwoFactor(); err != nil {
			return err
		}
	}

	if c.RateLimit != nil && c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case constants.RateLimitBackendMemory:
		case constants.RateLimitBackendRedis:
			if c.Redis == nil || c.Redis.Addr == "" {
				return errors.New("redis address is required for the redis rate limit backend")
			}
		default:
			return errors.Errorf("unknown rate limit backend: %s", c.RateLimit.Backend)
		}
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			return errors.New("rate limit requests and window must be positive")
		}
	}

	return nil
}

func (c *Config) validateTwoFactor() error {
	if c.TwoFactor.MaxAttempts < 1 {
		return errors.New("two-factor max attempts must be at least 1")
	}
	if c.TwoFactor.CodeLength < 4 || c.TwoFactor.CodeLength > 10 {
		return errors.New("two-factor code length must be between 4 and 10")
	}
	if c.TwoFactor.CodeTTL <= 0 {
		return errors.New("two-factor code TTL must be positive")
	}

	if c.Notifier == nil || c.Notifier.Provider == "" {
		return errors.New("two-factor is enabled but no notifier is configured")
	}

	switch c.Notifier.Provider {
	case constants.NotifierProviderLog:
		if c.IsProduction() {
			return errors.New("the log notifier cannot deliver two-factor codes in production")
		}
	case constants.NotifierProviderLocal:
		if c.Notifier.LocalEndpoint == "" {
			return errors.New("local endpoint is required for local notifier")
		}
	case constants.NotifierProviderGoogle:
		if c.Notifier.ProjectID == "" || c.Notifier.TopicID == "" {
			return errors.New("project ID and topic ID are required for google notifier")
		}
	case constants.NotifierProviderNATS:
		if c.Notifier.NATSURL == "" || c.Notifier.NATSSubject == "" {
			return errors.New("nats url and subject are required for nats notifier")
		}
	default:
		return errors.Errorf("unknown notifier provider: %s", c.Notifier.Provider)
	}

	return nil
}

func validateSecret(name, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return errors.Errorf("%s token secret must be provided", name)
	}
	if len(secret) < MinSecretLength {
		return errors.Errorf("%s token secret must be at least %d characters", name, MinSecretLength)
	}

	return nil
}

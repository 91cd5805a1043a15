// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"backoffice/config"
	"backoffice/internal/domain/service"
	"backoffice/internal/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// defaultIssuer signs tokens when no service name is configured.
const defaultIssuer = "backoffice"

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	accessSecret  []byte        // Secret key for signing access tokens.
	refreshSecret []byte        // Secret key for signing refresh tokens.
	accessTTL     time.Duration // Time-to-live for access tokens.
	refreshTTL    time.Duration // Time-to-live for refresh tokens.
	issuer        string
	parser        *jwt.Parser
}

// NewJWTService is the constructor for jwtService.
// Secrets below config.MinSecretLength are rejected so the process cannot start with them.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if len(cfg.SecretKey.Access) < config.MinSecretLength || len(cfg.SecretKey.Refresh) < config.MinSecretLength {
		return nil, errors.Errorf("jwt secrets must be at least %d characters", config.MinSecretLength)
	}
	if cfg.Auth == nil || cfg.Auth.AccessTokenTTL <= 0 || cfg.Auth.RefreshTokenTTL <= 0 {
		return nil, errors.New("jwt token TTLs must be configured")
	}

	issuer := cfg.Env.ServiceName
	if issuer == "" {
		issuer = defaultIssuer
	}

	return &jwtService{
		accessSecret:  []byte(cfg.SecretKey.Access),
		refreshSecret: []byte(cfg.SecretKey.Refresh),
		accessTTL:     cfg.Auth.AccessTokenTTL,
		refreshTTL:    cfg.Auth.RefreshTokenTTL,
		issuer:        issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithIssuer(issuer),
		),
	}, nil
}

// NewJTI returns a ULID, which is unique and sorts by issue time.
func (s *jwtService) NewJTI() string {
	return ulid.Make().String()
}

// IssuePair creates an access token and a refresh token sharing the same lineage.
func (s *jwtService) IssuePair(userID uuid.UUID, jti string, now time.Time) (*service.TokenPair, error) {
	accessExp := now.Add(s.accessTTL).Truncate(jwt.TimePrecision)
	accessToken, err := s.sign(userID, jti, service.TokenTypeAccess, now, accessExp, s.accessSecret)
	if err != nil {
		return nil, err
	}

	// The session expiry must equal the signed exp claim, which has second precision
	refreshExp := now.Add(s.refreshTTL).Truncate(jwt.TimePrecision)
	refreshToken, err := s.sign(userID, jti, service.TokenTypeRefresh, now, refreshExp, s.refreshSecret)
	if err != nil {
		return nil, err
	}

	return &service.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		JTI:              jti,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccess creates a new access token for an existing lineage.
func (s *jwtService) IssueAccess(userID uuid.UUID, jti string, now time.Time) (string, error) {
	return s.sign(userID, jti, service.TokenTypeAccess, now, now.Add(s.accessTTL).Truncate(jwt.TimePrecision), s.accessSecret)
}

// VerifyAccess checks an access token against the access secret.
func (s *jwtService) VerifyAccess(token string) (*service.Claims, error) {
	return s.verify(token, service.TokenTypeAccess, s.accessSecret)
}

// VerifyRefresh checks a refresh token against the refresh secret.
func (s *jwtService) VerifyRefresh(token string) (*service.Claims, error) {
	return s.verify(token, service.TokenTypeRefresh, s.refreshSecret)
}

// HashToken returns the SHA-256 hex digest of a token.
func (s *jwtService) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

func (s *jwtService) sign(userID uuid.UUID, jti, tokenType string, now, exp time.Time, secret []byte) (string, error) {
	if userID == uuid.Nil || jti == "" {
		return "", errors.New("token subject and jti are required")
	}

	claims := &service.Claims{
		UserID: userID,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrapf(err, "failed to sign %s token", tokenType)
	}

	return signed, nil
}

func (s *jwtService) verify(token, tokenType string, secret []byte) (*service.Claims, error) {
	claims := &service.Claims{}

	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, service.ErrTokenExpired
		}

		return nil, errors.Wrap(service.ErrTokenMalformed, err.Error())
	}

	// A refresh token must never pass as an access token and vice versa, even if the secrets leak into each other.
	if claims.Type != tokenType || claims.UserID == uuid.Nil || claims.ID == "" {
		return nil, service.ErrTokenMalformed
	}
	if claims.Subject != claims.UserID.String() {
		return nil, service.ErrTokenMalformed
	}

	return claims, nil
}

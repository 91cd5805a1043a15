package auth

import (
	"testing"

	"backoffice/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasherConfig() *config.Config {
	return &config.Config{
		Auth:      &config.AuthConfig{BcryptCost: bcrypt.MinCost},
		TwoFactor: &config.TwoFactorConfig{CodeHashCost: bcrypt.MinCost},
	}
}

func TestBcryptHasher_HashAndCheck(t *testing.T) {
	hasher := NewBcryptHasher(newTestHasherConfig())
	password := "StrongPass123!"

	hash, err := hasher.Hash(password)
	require.NoError(t, err)
	assert.NotEqual(t, password, hash)

	assert.True(t, hasher.Check(password, hash))
	assert.False(t, hasher.Check("WrongPassword123!", hash))
	assert.False(t, hasher.Check("", hash))
	assert.False(t, hasher.Check(password, "not-a-bcrypt-hash"))
}

func TestBcryptHasher_SaltsEveryHash(t *testing.T) {
	hasher := NewBcryptHasher(newTestHasherConfig())

	first, err := hasher.Hash("Admin123!")
	require.NoError(t, err)
	second, err := hasher.Hash("Admin123!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestBcryptHasher_UsesConfiguredCost(t *testing.T) {
	cfg := newTestHasherConfig()
	cfg.Auth.BcryptCost = 5
	cfg.TwoFactor.CodeHashCost = 4

	passwordHash, err := NewBcryptHasher(cfg).Hash("secret")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(passwordHash))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)

	codeHash, err := NewBcryptCodeHasher(cfg).Hash("123456")
	require.NoError(t, err)
	cost, err = bcrypt.Cost([]byte(codeHash))
	require.NoError(t, err)
	assert.Equal(t, 4, cost)
}

func TestBcryptHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, newBcryptHasher(1).cost)
	assert.Equal(t, bcrypt.MaxCost, newBcryptHasher(99).cost)
}

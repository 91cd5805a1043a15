package auth

import (
	"crypto/rand"
	"math/big"
	"strings"

	"backoffice/config"
	"backoffice/internal/domain/service"
	"backoffice/internal/errors"
)

const defaultCodeLength = 6

type numericCodeGenerator struct {
	length int
	max    *big.Int
}

// NewCodeGenerator returns a generator of zero-padded numeric codes drawn from crypto/rand.
func NewCodeGenerator(cfg *config.Config) service.CodeGenerator {
	length := defaultCodeLength
	if cfg != nil && cfg.TwoFactor != nil && cfg.TwoFactor.CodeLength > 0 {
		length = cfg.TwoFactor.CodeLength
	}

	return newNumericCodeGenerator(length)
}

func newNumericCodeGenerator(length int) *numericCodeGenerator {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	return &numericCodeGenerator{length: length, max: limit}
}

// Generate returns a code of exactly the configured width.
func (g *numericCodeGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, g.max)
	if err != nil {
		return "", errors.Wrap(err, "failed to read random code")
	}

	code := n.String()
	if pad := g.length - len(code); pad > 0 {
		code = strings.Repeat("0", pad) + code
	}

	return code, nil
}

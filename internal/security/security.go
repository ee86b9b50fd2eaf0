// Package security holds the CPU-bound credential primitives: password
// strength validation, bcrypt hashing and verification, and generation of
// the numeric second-factor codes.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	autherror "github.com/S0uris666/Propsail/internal/errors"
	authconstant "github.com/S0uris666/Propsail/pkg/constant"
)

const minPasswordLength = 8

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// CheckStrength validates the password policy used at registration time:
// at least 8 characters, one letter and one digit.
func (s *Service) CheckStrength(password string) error {
	if len(password) < minPasswordLength {
		return autherror.ErrWeakPassword
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return autherror.ErrWeakPassword
	}

	return nil
}

// HashPassword produces a salted bcrypt hash at the fixed work factor.
func (s *Service) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), authconstant.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
// Neither input is ever logged or returned.
func (s *Service) VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// GenerateNumericCode returns a left-zero-padded numeric code of the given
// length, drawn uniformly from [0, 10^length) using crypto/rand.
func (s *Service) GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}

	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("failed to generate numeric code: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n), nil
}

// GenerateRandomToken returns a hex-encoded random token of the given byte size.
func (s *Service) GenerateRandomToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return hex.EncodeToString(b), nil
}

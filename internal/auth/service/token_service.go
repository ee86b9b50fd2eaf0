package service

//go:generate mockgen -destination=../../mocks/mock_token_minter.go -package=mocks github.com/S0uris666/Propsail/internal/auth/service TokenMinter

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenMinter issues the bearer token returned after a successful
// second-factor redemption.
type TokenMinter interface {
	Mint(userID string) (token string, expiresIn int, err error)
}

type TokenService struct {
	Secret string
	Expiry time.Duration
}

func NewTokenService(secret string, expirySeconds int) *TokenService {
	return &TokenService{
		Secret: secret,
		Expiry: time.Duration(expirySeconds) * time.Second,
	}
}

// Mint signs an HS256 access token with the user id as subject and the
// configured fixed expiry. It returns the token and its lifetime in seconds.
func (ts *TokenService) Mint(userID string) (string, int, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.Expiry)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.Secret))
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign access token: %w", err)
	}

	return token, int(ts.Expiry.Seconds()), nil
}

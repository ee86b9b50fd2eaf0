package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenService(t *testing.T) {
	ts := NewTokenService("secret-key", 900)

	assert.Equal(t, "secret-key", ts.Secret)
	assert.Equal(t, 15*time.Minute, ts.Expiry)
}

func TestTokenService_Mint(t *testing.T) {
	const secret = "test-signing-secret-123"

	ts := NewTokenService(secret, 900)

	token, expiresIn, err := ts.Mint("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, 900, expiresIn)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			t.Fatalf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "user-123", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
	assert.WithinDuration(t, time.Now().Add(900*time.Second), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenService_Mint_WrongSecretRejected(t *testing.T) {
	ts := NewTokenService("correct-secret", 900)

	token, _, err := ts.Mint("user-123")
	require.NoError(t, err)

	_, err = jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte("wrong-secret"), nil
	})
	assert.Error(t, err)
}

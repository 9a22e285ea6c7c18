package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParseValidToken(t *testing.T) {
	parser := NewParser(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id":   float64(42),
		"role":      "ACCOUNTING",
		"full_name": "Dana Omar",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	principal, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), principal.UserID)
	assert.Equal(t, "ACCOUNTING", principal.Role)
	assert.Equal(t, "Dana Omar", principal.FullName)
	assert.True(t, principal.IsAccountant())
}

func TestParseWrongSecret(t *testing.T) {
	parser := NewParser(testSecret)
	token := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": float64(42),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	_, err := parser.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseExpiredToken(t *testing.T) {
	parser := NewParser(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": float64(42),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	_, err := parser.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseMissingUserID(t *testing.T) {
	parser := NewParser(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"role": "ADMIN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	_, err := parser.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseGarbage(t *testing.T) {
	parser := NewParser(testSecret)

	_, err := parser.Parse("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

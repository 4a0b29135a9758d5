package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mint signs a token the way the admin system does.
func mint(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Sub:  "ops-1",
		Role: "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestParseValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	c, err := ParseValidate(mint(t, "test-secret", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "ops-1", c.Sub)
	assert.Equal(t, "ADMIN", c.Role)
}

func TestParseValidate_WrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	_, err := ParseValidate(mint(t, "other-secret", time.Hour))
	require.Error(t, err)
}

func TestParseValidate_Expired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	_, err := ParseValidate(mint(t, "test-secret", -time.Minute))
	require.Error(t, err)
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestVerifierUserID(t *testing.T) {
	v := NewVerifier(secret)

	id, err := v.UserID(sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("42")))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier(secret)

	expired := validClaims("42")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims("42")
	noExpiry.ExpiresAt = nil

	tests := map[string]string{
		"wrong secret":    sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("42")),
		"wrong method":    sign(t, jwt.SigningMethodHS512, []byte(secret), validClaims("42")),
		"expired":         sign(t, jwt.SigningMethodHS256, []byte(secret), expired),
		"no expiry":       sign(t, jwt.SigningMethodHS256, []byte(secret), noExpiry),
		"non-numeric sub": sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("alice")),
		"garbage":         "not-a-token",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.UserID(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)

	token, err = BearerToken("bearer   xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer   "} {
		_, err := BearerToken(header)
		assert.ErrorIs(t, err, ErrMissingToken, header)
	}
}

func TestUserIDContext(t *testing.T) {
	_, ok := UserIDFrom(context.Background())
	assert.False(t, ok)

	id, ok := UserIDFrom(WithUserID(context.Background(), 7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

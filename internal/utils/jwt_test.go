package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	t.Parallel()

	token, err := GenerateJWT(42, "agent", "secret")
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "agent", claims.Role)
	assert.Equal(t, TokenIssuer, claims.Issuer)
	assert.Equal(t, "42", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestParseJWT_Rejects(t *testing.T) {
	t.Parallel()

	valid, err := GenerateJWT(1, "user", "secret")
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1,
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: 1, Role: "admin"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	sign := func(c Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	foreignIssuer := sign(Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: future}})
	noExpiry := sign(Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: TokenIssuer}})
	noUser := sign(Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Issuer: TokenIssuer, ExpiresAt: future}})

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "other"},
		{"expired", expired, "secret"},
		{"unexpected algorithm", wrongAlg, "secret"},
		{"garbage", "not-a-token", "secret"},
		{"foreign issuer", foreignIssuer, "secret"},
		{"no expiry", noExpiry, "secret"},
		{"no account", noUser, "secret"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseJWT(tt.token, tt.secret)
			assert.Error(t, err)
		})
	}
}

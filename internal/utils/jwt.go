package utils

import (
	"errors"  // Error construction
	"strconv" // Subject formatting
	"time"    // Token lifetime

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// Token settings
const (
	TokenTTL    = 24 * time.Hour  // Lifetime of an issued token
	TokenIssuer = "wallet-ledger" // iss claim written and required
)

// ErrInvalidToken is returned when a token parses but its claims are unusable
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by an access token
type Claims struct {
	UserID               uint   `json:"user_id"` // Account ID
	Role                 string `json:"role"`    // Account role
	jwt.RegisteredClaims        // Standard JWT claims
}

// GenerateJWT signs an HS256 access token for userID with role
func GenerateJWT(userID uint, role, secret string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,                               // Who issued the token
			Subject:   strconv.FormatUint(uint64(userID), 10),    // Account the token is for
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),     // Expiry
			IssuedAt:  jwt.NewNumericDate(now),                   // Issue time
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)), // Tolerate small clock skew
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT verifies signature, algorithm, issuer and expiry of tokenStr and returns its claims
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), // HS256 only
		jwt.WithIssuer(TokenIssuer),                                  // Our tokens only
		jwt.WithExpirationRequired(),                                 // Tokens must expire
	)
	if err != nil {
		return nil, err
	}
	// A token without an account is useless to the handlers
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

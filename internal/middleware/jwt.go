package middleware

import (
	"net/http"                     // HTTP status codes
	"strings"                      // Header parsing
	"wallet_ledger/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Context keys set by JWTAuthMiddleware
const (
	UserIDKey = "userID" // Authenticated account ID
	RoleKey   = "role"   // Authenticated account role
	ClaimsKey = "claims" // Full token claims
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false // Missing or other scheme
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// reject aborts the request with a 401 and a bearer challenge
func reject(c *gin.Context, reason, message string) {
	logrus.WithFields(logrus.Fields{
		"path":   c.FullPath(), // Route template
		"reason": reason,       // Why the token was refused
	}).Debug("Request rejected by auth middleware")
	c.Header("WWW-Authenticate", `Bearer realm="wallet"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

// JWTAuthMiddleware validates the bearer token and stores the caller's identity in the context
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			reject(c, "missing bearer token", "Missing or invalid Authorization header")
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret)
		if err != nil {
			reject(c, err.Error(), "Invalid or expired token")
			return
		}
		c.Set(ClaimsKey, claims)        // Full claims for handlers that need them
		c.Set(UserIDKey, claims.UserID) // Account ID
		c.Set(RoleKey, claims.Role)     // Account role
		c.Next()
	}
}

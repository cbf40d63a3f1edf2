package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet_ledger/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", JWTAuthMiddleware("secret"), RequireRoles(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.MustGet(UserIDKey), "role": c.GetString(RoleKey)})
	})
	return r
}

func serve(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthAndRoles(t *testing.T) {
	userToken, err := utils.GenerateJWT(7, "user", "secret")
	require.NoError(t, err)
	agentToken, err := utils.GenerateJWT(8, "agent", "secret")
	require.NoError(t, err)
	emptyRole, err := utils.GenerateJWT(9, "", "secret")
	require.NoError(t, err)
	foreign, err := utils.GenerateJWT(7, "user", "other")
	require.NoError(t, err)

	r := newRouter("user", "admin")
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token " + userToken, http.StatusUnauthorized},
		{"bad signature", "Bearer " + foreign, http.StatusUnauthorized},
		{"no role claim", "Bearer " + emptyRole, http.StatusUnauthorized},
		{"role not allowed", "Bearer " + agentToken, http.StatusForbidden},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"allowed", "Bearer " + userToken, http.StatusOK},
		{"lowercase scheme", "bearer " + userToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.header)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := serve(r, "")
	assert.Equal(t, `Bearer realm="wallet"`, w.Header().Get("WWW-Authenticate"))

	w = serve(r, "Bearer "+userToken)
	assert.JSONEq(t, `{"user_id":7,"role":"user"}`, w.Body.String())
}

func TestRequireRoles_WithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RequireRoles("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
}

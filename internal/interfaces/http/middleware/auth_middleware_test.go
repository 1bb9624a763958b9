package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"lexmatch.backend/pkg/jwt"
)

func TestAuthMiddleware_BearerFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtService := jwt.NewJWTService("secret", "lexmatch", time.Hour)

	r := gin.New()
	r.Use(AuthMiddleware(jwtService))
	r.GET("/me", func(c *gin.Context) {
		id, ok := GetUserID(c)
		require.True(t, ok)
		role, _ := GetUserRole(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Body.String(), "UNAUTHENTICATED")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Basic abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer invalid")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Body.String(), "Invalid token")
	})

	t.Run("expired token", func(t *testing.T) {
		expired := jwt.NewJWTService("secret", "lexmatch", -time.Minute)
		token, err := expired.GenerateToken("U1", jwt.RoleUser)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Body.String(), "expired")
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := jwtService.GenerateToken("U1", jwt.RoleUser)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"id":"U1","role":"USER"}`, w.Body.String())
	})
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	build := func(role string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if role != "" {
				c.Set(UserRoleKey, role)
			}
			c.Next()
		})
		r.Use(RequireAdmin())
		r.POST("/close", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r
	}

	cases := map[string]int{
		"":            http.StatusUnauthorized,
		jwt.RoleUser:  http.StatusForbidden,
		jwt.RoleAdmin: http.StatusNoContent,
	}
	for role, want := range cases {
		w := httptest.NewRecorder()
		build(role).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/close", nil))
		require.Equal(t, want, w.Code, "role %q", role)
	}
}

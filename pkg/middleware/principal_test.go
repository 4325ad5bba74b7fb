package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Error())
	return r
}

func TestAuthenticatedRequiresIdentityHeader(t *testing.T) {
	r := newRouter()
	r.GET("/protected", Authenticated(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticatedStoresPrincipal(t *testing.T) {
	r := newRouter()
	r.GET("/protected", Authenticated(), func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "admin": p.IsAdmin()})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-User-Id", "12345")
	req.Header.Set("X-User-Role", "admin")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"user_id":"12345"`)
	require.Contains(t, w.Body.String(), `"admin":true`)
}

func TestAuthenticatedDefaultsRoleToUser(t *testing.T) {
	r := newRouter()
	r.GET("/protected", Authenticated(), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"role": p.Role})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-User-Id", "12345")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Contains(t, w.Body.String(), `"role":"user"`)
}

func TestOperationalCredential(t *testing.T) {
	r := newRouter()
	r.POST("/trigger", OperationalCredential("cron-secret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestOperationalCredentialRejectsWhenUnconfigured(t *testing.T) {
	r := newRouter()
	r.POST("/trigger", OperationalCredential(""), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// An empty configured credential must never let an empty bearer in.
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

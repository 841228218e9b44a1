package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limitd/limitd/internal/config"
	"github.com/limitd/limitd/internal/interfaces/http/middleware"
	"github.com/limitd/limitd/pkg/logger"
)

const testSecret = "test-secret-key"

func authConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: testSecret,
		AdminRole: "admin",
	}
}

func signToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authEngine(cfg config.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.AdminAuth(cfg, logger.NewNullLogger()))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": middleware.AdminSubject(c)})
	})
	return r
}

func TestAdminAuth(t *testing.T) {
	r := authEngine(authConfig())

	do := func(authHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("").Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("Token abc").Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", "alice", "admin")
		assert.Equal(t, http.StatusUnauthorized, do("Bearer "+token).Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  "alice",
			"role": "admin",
			"exp":  time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, do("Bearer "+signed).Code)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"role": "admin",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, do("Bearer "+signed).Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		token := signToken(t, testSecret, "mallory", "viewer")
		assert.Equal(t, http.StatusForbidden, do("Bearer "+token).Code)
	})

	t.Run("valid admin token", func(t *testing.T) {
		token := signToken(t, testSecret, "alice", "admin")
		w := do("Bearer " + token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alice")
	})
}

func TestCSRFGuard(t *testing.T) {
	newEngine := func(enabled bool) *gin.Engine {
		gin.SetMode(gin.TestMode)
		cfg := authConfig()
		cfg.CSRFEnabled = enabled
		r := gin.New()
		r.Use(middleware.CSRFGuard(cfg))
		handler := func(c *gin.Context) { c.Status(http.StatusOK) }
		r.GET("/x", handler)
		r.POST("/x", handler)
		return r
	}

	do := func(r *gin.Engine, method, cookie, header string) int {
		req := httptest.NewRequest(method, "/x", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: "limitd_csrf", Value: cookie})
		}
		if header != "" {
			req.Header.Set("X-CSRF-Token", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("disabled passes everything", func(t *testing.T) {
		r := newEngine(false)
		assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "", ""))
	})

	t.Run("reads are exempt", func(t *testing.T) {
		r := newEngine(true)
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "", ""))
	})

	t.Run("mutation without token rejected", func(t *testing.T) {
		r := newEngine(true)
		assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "", ""))
	})

	t.Run("mismatched token rejected", func(t *testing.T) {
		r := newEngine(true)
		assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "abc", "def"))
	})

	t.Run("matching token accepted", func(t *testing.T) {
		r := newEngine(true)
		assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "abc", "abc"))
	})
}

package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/eventpass/internal/helpers"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := helpers.NewTokenValidator(secret, "", logger)
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestID(), Authenticate(tokens, logger))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": GetCaller(c).GetSafeRole()})
	})
	r.GET("/mine", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/admin", RequireRole(models.RoleAdmin, models.RoleSuperAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func signToken(t *testing.T, key, subject, role, email string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := helpers.CustomClaims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func get(r http.Handler, path, token string, cookie bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		if cookie {
			req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	r := newRouter(t)
	guest := signToken(t, secret, "user-1", "", "a@example.com", time.Minute)

	rec := get(r, "/whoami", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), helpers.RoleAnonymous)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = get(r, "/whoami", guest, false)
	assert.Contains(t, rec.Body.String(), models.RoleGuest)

	rec = get(r, "/whoami", guest, true)
	assert.Contains(t, rec.Body.String(), models.RoleGuest)

	rec = get(r, "/whoami", "garbage", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthAndRole(t *testing.T) {
	r := newRouter(t)
	guest := signToken(t, secret, "user-1", models.RoleGuest, "", time.Minute)
	admin := signToken(t, secret, "staff-1", models.RoleSuperAdmin, "", time.Minute)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/mine", "", false).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/mine", guest, false).Code)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", "", false).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/admin", guest, false).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/admin", admin, false).Code)
}

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/yashrajoria/giftshop-backend/common/middleware"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": middleware.GetUserID(c), "admin": middleware.IsAdmin(c)})
	})
	return r
}

func do(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingUser(t *testing.T) {
	w := do(newRouter(middleware.AuthMiddleware()), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_HeadersAndCookies(t *testing.T) {
	r := newRouter(middleware.AuthMiddleware())

	w := do(r, map[string]string{"X-User-ID": "u1", "X-User-Role": "admin"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1","admin":true}`, w.Body.String())

	w = do(r, map[string]string{"Cookie": "user_id=u2; user_role=user"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u2","admin":false}`, w.Body.String())
}

func TestAdminOnly(t *testing.T) {
	r := newRouter(middleware.AuthMiddleware(), middleware.AdminOnly())

	assert.Equal(t, http.StatusForbidden, do(r, map[string]string{"X-User-ID": "u1"}).Code)
	assert.Equal(t, http.StatusOK, do(r, map[string]string{"X-User-ID": "u1", "X-User-Role": "admin"}).Code)
}

func TestRateLimiter_PerUser(t *testing.T) {
	rl := middleware.NewRateLimiter(rate.Limit(0.0001), 2)
	r := newRouter(middleware.AuthMiddleware(), rl.PerUser())
	h := map[string]string{"X-User-ID": "u1"}

	assert.Equal(t, http.StatusOK, do(r, h).Code)
	assert.Equal(t, http.StatusOK, do(r, h).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, h).Code)

	// Buckets are per user.
	assert.Equal(t, http.StatusOK, do(r, map[string]string{"X-User-ID": "u2"}).Code)
}

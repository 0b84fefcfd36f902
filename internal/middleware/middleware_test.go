package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fundingportal/internal/metrics"
	"fundingportal/internal/model"
	"fundingportal/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSessions struct {
	valid map[string]*service.SessionInfo
}

func (s stubSessions) ValidateSession(_ context.Context, token string) (*service.SessionInfo, error) {
	if info, ok := s.valid[token]; ok {
		return info, nil
	}
	return nil, service.ErrSessionInvalid
}

func newAuthRouter(t *testing.T) (*gin.Engine, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	auth := NewAuthenticator(stubSessions{valid: map[string]*service.SessionInfo{
		"user-token":  {IsValid: true, UserID: userID, Role: model.RoleUser},
		"admin-token": {IsValid: true, UserID: uuid.New(), Role: model.RoleAdmin},
	}}, false)

	r := gin.New()
	protected := r.Group("/", auth.RequireSession())
	protected.GET("/me", func(c *gin.Context) {
		id, ok := UserID(c)
		require.True(t, ok)
		c.String(http.StatusOK, id.String())
	})
	protected.GET("/admin", RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, Role(c))
	})
	return r, userID
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequireSession(t *testing.T) {
	r, userID := newAuthRouter(t)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "user-token"})
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSession_InvalidTokenClearsCookie(t *testing.T) {
	r, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "stale"})
	rec := serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestRequireRole(t *testing.T) {
	r, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RoleAdmin, rec.Body.String())
}

func TestSetSessionCookie(t *testing.T) {
	auth := NewAuthenticator(stubSessions{}, true)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	auth.SetSessionCookie(c, "tok", time.Now().Add(time.Hour))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)
	assert.InDelta(t, 3600, cookies[0].MaxAge, 5)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.POST("/login", RateLimit(rdb, 2, time.Minute, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	}
	rec := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
}

func TestRateLimit_WindowIsSetOnceWithCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.POST("/login", RateLimit(rdb, 10, time.Minute, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	// httptest requests come from 192.0.2.1.
	const key = "ratelimit:/login:192.0.2.1"

	serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, time.Minute, mr.TTL(key), "the first request opens the window")

	mr.FastForward(20 * time.Second)
	serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, 40*time.Second, mr.TTL(key), "later requests do not extend the window")
	count, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "2", count)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	r := gin.New()
	r.POST("/login", RateLimit(rdb, 1, time.Minute, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	r := gin.New()
	r.Use(Metrics(m), RequestLogger(zerolog.Nop()))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { _ = c.Error(errors.New("boom")); c.Status(http.StatusInternalServerError) })

	serve(r, httptest.NewRequest(http.MethodGet, "/items/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/items/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/fail", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/fail", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

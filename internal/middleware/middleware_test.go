package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"shortlink-analytics/internal/config"
	auth "shortlink-analytics/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, mutate func(req *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(req *http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func TestAuthMiddleware(t *testing.T) {
	tm := auth.NewTokenManager("secret", "shortlink", time.Hour)
	r := gin.New()
	api := r.Group("/api", AuthMiddleware(tm))
	api.GET("/me", func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "role": p.Role})
	})
	api.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	userToken, err := tm.GenerateToken(3, "carol", "user")
	require.NoError(t, err)
	adminToken, err := tm.GenerateToken(1, "admin", "admin")
	require.NoError(t, err)

	t.Run("missing header", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/api/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "缺少认证令牌")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/api/me", func(req *http.Request) {
			req.Header.Set("Authorization", "Basic "+userToken)
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "认证格式错误")
	})

	t.Run("invalid token", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/api/me", bearer("garbage"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/api/me", bearer(userToken))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":3,"role":"user"}`, w.Body.String())
	})

	t.Run("admin only", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/api/admin", bearer(userToken)).Code)
		assert.Equal(t, http.StatusNoContent, perform(r, http.MethodGet, "/api/admin", bearer(adminToken)).Code)
	})
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(&config.Limit{Enabled: true, Requests: 60, Burst: 2, SkipPaths: []string{"/health"}}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	from := func(ip string) func(req *http.Request) {
		return func(req *http.Request) { req.RemoteAddr = ip + ":40000" }
	}

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/x", from("203.0.113.1")).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/x", from("203.0.113.1")).Code)
	limited := perform(r, http.MethodGet, "/x", from("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	// 其他客户端不受影响
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/x", from("203.0.113.2")).Code)
	// 跳过的路径不计数
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/health", from("203.0.113.1")).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(&config.Limit{Enabled: false, Burst: 1}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/x", nil).Code)
	}
}

func TestIPRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2025, 10, 16, 12, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(60, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.Len(t, l.clients, 1)

	now = now.Add(10 * time.Minute)
	assert.True(t, l.allow("b"))
	assert.Len(t, l.clients, 1)
}

func TestGinZapLoggerAndRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(RequestID(), GinZapLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := perform(r, http.MethodGet, "/ok?days=7", nil)
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)

	w = perform(r, http.MethodGet, "/missing", func(req *http.Request) {
		req.Header.Set(RequestIDHeader, "req-123")
	})
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "days=7", entries[0].ContextMap()["query"])
	assert.Equal(t, generated, entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "req-123", entries[1].ContextMap()["request_id"])
}

func TestGinZapRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	r.Use(GinZapRecovery(zap.New(core), true))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := perform(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "服务器内部错误")

	entries := logs.FilterMessage("[Recovery from panic]").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap(), "stack")
}

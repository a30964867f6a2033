package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/mo-task-monitor/internal/constants"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("test-secret"))))
	r.GET("/login/:admin", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(constants.ContextKeyUserID, uint64(7))
		session.Set(constants.ContextKeyUsername, "alice")
		session.Set(constants.ContextKeyIsAdmin, c.Param("admin") == "admin")
		require.NoError(t, session.Save())
		c.Status(http.StatusNoContent)
	})
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		id, ok := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok, "admin": IsAdmin(c)})
	})
	r.GET("/admin", RequireAuth(), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func login(t *testing.T, r *gin.Engine, role string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/login/"+role, nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	return w.Result().Cookies()
}

func get(r *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", nil).Code)

	w := get(r, "/me", login(t, r, "user"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"ok":true,"admin":false}`, w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", login(t, r, "user")).Code)
	assert.Equal(t, http.StatusOK, get(r, "/admin", login(t, r, "admin")).Code)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/mo-task-monitor/internal/constants"
	"github.com/yukikurage/mo-task-monitor/internal/database"
	"github.com/yukikurage/mo-task-monitor/internal/middleware"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/seed"
	"github.com/yukikurage/mo-task-monitor/internal/services"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	backend     *repository.GormBackend
	router      *gin.Engine
	taskService *services.TaskService
	orgA        models.Organization
	orgB        models.Organization
}

func setupTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "tasks.sqlite")
	db, err := database.OpenSQLite(path, nil)
	require.NoError(t, err)

	bundle, err := seed.Data{
		Admins:        []seed.Admin{{Username: "admin", FullName: "Admin User"}},
		Organizations: []string{"Org A", "Org B"},
	}.Build(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("viewer-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	bundle.Users = append(bundle.Users, models.User{Username: "viewer", PasswordHash: string(hash), FullName: "Viewer"})

	backend := repository.NewGormBackend(db, repository.GormOptions{SQLitePath: path, Seed: bundle})
	require.NoError(t, backend.Initialize(context.Background()))
	t.Cleanup(func() { _ = backend.Close() })

	clock := func() time.Time { return testNow }
	authService := services.NewAuthService(backend.Users())
	orgService := services.NewOrganizationService(backend.Organizations(), backend.Tasks()).WithClock(clock)
	taskService := services.NewTaskService(backend.Tasks(), backend.Organizations()).WithClock(clock)

	authHandler := NewAuthHandler(authService)
	orgHandler := NewOrganizationHandler(orgService)
	taskHandler := NewTaskHandler(taskService, orgService)

	r := gin.New()
	r.Use(middleware.RequestLogger(zaptest.NewLogger(t)))
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))

	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/auth/logout", authHandler.Logout)
	r.GET("/api/auth/me", middleware.RequireAuth(), authHandler.GetCurrentUser)

	authed := r.Group("/api", middleware.RequireAuth())
	authed.GET("/organizations", orgHandler.ListOrganizations)
	authed.GET("/organizations/stats", orgHandler.Stats)
	authed.GET("/organizations/:id", middleware.LoadOrganization(orgService), orgHandler.GetOrganization)
	authed.GET("/tasks", taskHandler.ListTasks)
	authed.GET("/tasks/assigners", taskHandler.ListAssigners)
	authed.POST("/tasks", middleware.RequireAdmin(), taskHandler.CreateTask)
	authed.GET("/tasks/:id", middleware.LoadTask(taskService), taskHandler.GetTask)
	authed.PATCH("/tasks/:id", middleware.RequireAdmin(), middleware.LoadTask(taskService), taskHandler.UpdateTask)
	authed.DELETE("/tasks/:id", middleware.RequireAdmin(), middleware.LoadTask(taskService), taskHandler.DeleteTask)
	authed.PUT("/tasks/:id/organizations/:org_id/status", middleware.LoadTask(taskService), taskHandler.UpdateOrganizationStatus)
	authed.GET("/dashboard", taskHandler.Dashboard)

	orgs, err := orgService.ListOrganizations(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 2)

	return testEnv{
		backend:     backend,
		router:      r,
		taskService: taskService,
		orgA:        orgs[0],
		orgB:        orgs[1],
	}
}

// do sends a JSON request with the given session cookies.
func (env testEnv) do(t *testing.T, method, url string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env testEnv) login(t *testing.T, username, password string) []*http.Cookie {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "expected session cookie to be set")
	return cookies
}

func (env testEnv) admin(t *testing.T) []*http.Cookie {
	return env.login(t, "admin", "admin")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/mo-task-monitor/internal/config"
	"github.com/yukikurage/mo-task-monitor/internal/database"
	"github.com/yukikurage/mo-task-monitor/internal/objectstore"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/seed"
	"github.com/yukikurage/mo-task-monitor/internal/storage"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		GinMode:            "test",
		SessionStore:       "cookie",
		SessionSecret:      "secret",
		CORSAllowedOrigins: []string{"http://localhost:5173"},
	}
}

func testBundle(t *testing.T) seed.Bundle {
	t.Helper()
	bundle, err := seed.Data{
		Admins:        []seed.Admin{{Username: "admin", FullName: "Admin User"}},
		Organizations: []string{"Org A", "Org B"},
	}.Build(bcrypt.MinCost)
	require.NoError(t, err)
	return bundle
}

func newRelational(t *testing.T) *repository.GormBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.sqlite")
	db, err := database.OpenSQLite(path, nil)
	require.NoError(t, err)
	b := repository.NewGormBackend(db, repository.GormOptions{SQLitePath: path, Seed: testBundle(t)})
	require.NoError(t, b.Initialize(context.Background()))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

type client struct {
	t       *testing.T
	router  http.Handler
	cookies []*http.Cookie
}

func newClient(t *testing.T, backend repository.Backend) *client {
	t.Helper()
	cfg := testConfig()
	store, err := NewSessionStore(cfg)
	require.NoError(t, err)
	return &client{t: t, router: NewRouter(cfg, backend, store, zaptest.NewLogger(t))}
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c *client) json(method, url string, body interface{}) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(c.t, err)
	}
	req := httptest.NewRequest(method, url, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *client) login(username, password string) {
	w := c.json(http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password})
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	c.cookies = w.Result().Cookies()
}

func (c *client) upload(url, filename string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(c.t, err)
	_, err = part.Write(content)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req)
}

func createTask(t *testing.T, c *client, title string) uint64 {
	t.Helper()
	w := c.json(http.MethodPost, "/api/tasks", map[string]interface{}{
		"title":            title,
		"description":      "Description",
		"organization_ids": []uint64{1, 2},
		"start_date":       "2024-01-01",
		"end_date":         "2024-01-10",
		"assigned_by":      "Admin User",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var task struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	return task.ID
}

func TestRouter_Health(t *testing.T) {
	c := newClient(t, newRelational(t))

	w := c.json(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"relational"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_CORS(t *testing.T) {
	c := newClient(t, newRelational(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := c.send(req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_AdminRoutesRequireAdmin(t *testing.T) {
	c := newClient(t, newRelational(t))

	w := c.json(http.MethodPost, "/api/admin/database/reset", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.json(http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_ExportImportRoundTrip(t *testing.T) {
	backend := newRelational(t)
	c := newClient(t, backend)
	c.login("admin", "admin")

	keep := createTask(t, c, "Kept")
	w := c.json(http.MethodPut, "/api/tasks/1/organizations/1/status", map[string]int{"completion_percentage": 80})
	require.Equal(t, http.StatusOK, w.Code)

	w = c.json(http.MethodGet, "/api/admin/database/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".sqlite")
	image := w.Body.Bytes()
	require.True(t, bytes.HasPrefix(image, []byte("SQLite format 3\x00")))

	before, err := backend.Tasks().List(context.Background())
	require.NoError(t, err)

	createTask(t, c, "Discarded")

	w = c.upload("/api/admin/database/import", "backup.sqlite", image)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	after, err := backend.Tasks().List(context.Background())
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, keep, after[0].ID)
	assert.True(t, storage.TasksEqual(before[0], after[0]), storage.DiffTasks(before[0], after[0]))
	assert.Equal(t, 40, after[0].CompletionPercentage)
}

func TestRouter_ImportRejectsInvalidFiles(t *testing.T) {
	backend := newRelational(t)
	c := newClient(t, backend)
	c.login("admin", "admin")
	createTask(t, c, "Kept")

	w := c.upload("/api/admin/database/import", "backup.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.upload("/api/admin/database/import", "backup.db", []byte("not a database"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tasks, err := backend.Tasks().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestRouter_Reset(t *testing.T) {
	backend := newRelational(t)
	c := newClient(t, backend)
	c.login("admin", "admin")
	createTask(t, c, "Gone")

	w := c.json(http.MethodPost, "/api/admin/database/reset", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tasks, err := backend.Tasks().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)

	orgs, err := backend.Organizations().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
}

func TestRouter_ReconcileRequiresFallback(t *testing.T) {
	c := newClient(t, newRelational(t))
	c.login("admin", "admin")

	w := c.json(http.MethodPost, "/api/admin/database/reconcile", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_FallbackDivergenceAndReconcile(t *testing.T) {
	primary := newRelational(t)
	mr := miniredis.RunT(t)
	secondary := objectstore.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", testBundle(t))
	require.NoError(t, secondary.Initialize(context.Background()))

	fallback := storage.NewFallback(primary, secondary, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = fallback.Close() })

	c := newClient(t, fallback)
	c.login("admin", "admin")
	createTask(t, c, "Written to primary")

	w := c.json(http.MethodPost, "/api/admin/database/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report storage.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, []uint64{1}, report.OnlyInSource)
	assert.False(t, report.Applied)

	w = c.json(http.MethodPost, "/api/admin/database/reconcile?apply=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	mirrored, err := secondary.Tasks().List(context.Background())
	require.NoError(t, err)
	require.Len(t, mirrored, 1)
	assert.Equal(t, "Written to primary", mirrored[0].Title)

	w = c.json(http.MethodPost, "/api/admin/database/reconcile?from=elsewhere", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.json(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"relational+objectstore","diverged":false}`, w.Body.String())
}

func TestNewSessionStore(t *testing.T) {
	cfg := testConfig()
	store, err := NewSessionStore(cfg)
	require.NoError(t, err)
	assert.NotNil(t, store)

	mr := miniredis.RunT(t)
	cfg.SessionStore = "redis"
	cfg.RedisHost, cfg.RedisPort = mr.Host(), mr.Port()
	store, err = NewSessionStore(cfg)
	require.NoError(t, err)
	assert.NotNil(t, store)
}

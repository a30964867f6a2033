package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/mo-task-monitor/internal/config"
	"github.com/yukikurage/mo-task-monitor/internal/constants"
	"github.com/yukikurage/mo-task-monitor/internal/handlers"
	"github.com/yukikurage/mo-task-monitor/internal/middleware"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/services"
	"go.uber.org/zap"
)

const sessionMaxAge = 86400 * 7 // 7 days

// NewSessionStore builds the cookie or redis session store selected by cfg.
func NewSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	switch cfg.SessionStore {
	case "redis":
		s, err := redisStore.NewStoreWithDB(
			10,              // Redis pool size
			"tcp",           // network type
			cfg.RedisAddr(), // Redis address from config
			"",              // username (empty for default user)
			cfg.RedisPassword,
			strconv.Itoa(cfg.RedisDB),
			[]byte(cfg.SessionSecret), // authentication key
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis session store: %w", err)
		}
		store = s
	default:
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsRelease(), // true in production (HTTPS)
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

// NewRouter wires services, handlers and middleware over backend.
func NewRouter(cfg *config.Config, backend repository.Backend, store sessions.Store, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Initialize services
	authService := services.NewAuthService(backend.Users())
	orgService := services.NewOrganizationService(backend.Organizations(), backend.Tasks())
	taskService := services.NewTaskService(backend.Tasks(), backend.Organizations())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	orgHandler := handlers.NewOrganizationHandler(orgService)
	taskHandler := handlers.NewTaskHandler(taskService, orgService)
	dbHandler := handlers.NewDatabaseHandler(backend)
	healthHandler := handlers.NewHealthHandler(backend)

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		// Organization routes (protected)
		orgs := api.Group("/organizations")
		orgs.Use(middleware.RequireAuth())
		{
			orgs.GET("", orgHandler.ListOrganizations)
			orgs.GET("/stats", orgHandler.Stats)
			orgs.GET("/:id", middleware.LoadOrganization(orgService), orgHandler.GetOrganization)
		}

		// Task routes (protected, mutations for admins)
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/assigners", taskHandler.ListAssigners)
			tasks.POST("", middleware.RequireAdmin(), taskHandler.CreateTask)
			tasks.GET("/:id", middleware.LoadTask(taskService), taskHandler.GetTask)
			tasks.PATCH("/:id", middleware.RequireAdmin(), middleware.LoadTask(taskService), taskHandler.UpdateTask)
			tasks.DELETE("/:id", middleware.RequireAdmin(), middleware.LoadTask(taskService), taskHandler.DeleteTask)
			tasks.PUT("/:id/organizations/:org_id/status", middleware.LoadTask(taskService), taskHandler.UpdateOrganizationStatus)
		}

		api.GET("/dashboard", middleware.RequireAuth(), taskHandler.Dashboard)

		// Database administration
		admin := api.Group("/admin/database")
		admin.Use(middleware.RequireAuth(), middleware.RequireAdmin())
		{
			admin.GET("/export", dbHandler.Export)
			admin.POST("/import", dbHandler.Import)
			admin.POST("/reset", dbHandler.Reset)
			admin.POST("/reconcile", dbHandler.Reconcile)
		}
	}

	return r
}

package router

import (
	"time"

	"tillcore/internal/config"
	"tillcore/internal/handler"
	"tillcore/internal/middleware"
	"tillcore/internal/repository"
	"tillcore/internal/service"
	"tillcore/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	cashierRepo := repository.NewCashierRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(cashierRepo, cfg)
	sessionSvc := service.NewSessionService(sessionRepo, ledgerRepo, dispatcher, cfg.AlertEmail)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: cashier, supervisor, admin — declared per-endpoint.
		// Resolution requires supervisor or above.
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/open", middleware.RequireRole("cashier", "supervisor", "admin"), sessionH.Open)
			sessions.POST("/:id/close", middleware.RequireRole("cashier", "supervisor", "admin"), sessionH.Close)
			sessions.POST("/:id/resolve", middleware.RequireRole("supervisor", "admin"), sessionH.Resolve)
			sessions.GET("/active", middleware.RequireRole("cashier", "supervisor", "admin"), sessionH.GetActive)
			sessions.GET("/:id", middleware.RequireRole("cashier", "supervisor", "admin"), sessionH.Get)
			sessions.GET("", middleware.RequireRole("supervisor", "admin"), sessionH.History)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}

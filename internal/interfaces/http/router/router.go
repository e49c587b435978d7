package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/loanflow/backend/internal/infrastructure/auth"
	"github.com/loanflow/backend/internal/infrastructure/config"
	"github.com/loanflow/backend/internal/infrastructure/logger"
	"github.com/loanflow/backend/internal/infrastructure/persistence"
	"github.com/loanflow/backend/internal/interfaces/http/dto"
	"github.com/loanflow/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar mounts a handler's routes on the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config carries the router's wiring
type Config struct {
	AppConfig *config.Config
	Logger    *zap.Logger
	Tokens    *auth.TokenService
	Database  *persistence.Database
}

// New builds the gin engine with the full middleware stack and mounts the
// given registrars under /api/v1. Health endpoints stay outside auth.
func New(cfg Config, registrars ...RouteRegistrar) (*gin.Engine, error) {
	if cfg.AppConfig.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterCustomValidators(v); err != nil {
			return nil, err
		}
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(cfg.Logger))
	engine.Use(logger.Recovery(cfg.Logger))
	if cfg.AppConfig.Telemetry.Enabled {
		engine.Use(middleware.Tracing(cfg.AppConfig.Telemetry.ServiceName))
	}
	engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins:     cfg.AppConfig.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.AppConfig.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.AppConfig.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           cfg.AppConfig.HTTP.CORSMaxAge,
	}))
	engine.Use(middleware.BodyLimit(cfg.AppConfig.HTTP.MaxBodySize))

	engine.GET("/health", healthHandler(cfg.Database))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.Tokens))
	api.Use(middleware.TenantContext())

	for _, registrar := range registrars {
		registrar.RegisterRoutes(api)
	}

	return engine, nil
}

// healthHandler reports liveness plus database reachability
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if db != nil {
			if err := db.Ping(); err != nil {
				status = http.StatusServiceUnavailable
				dbStatus = "unreachable"
			}
		}
		c.JSON(status, gin.H{
			"status":   "ok",
			"database": dbStatus,
		})
	}
}

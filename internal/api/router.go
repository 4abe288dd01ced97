package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/fixdoc/internal/api/chat"
	"github.com/liliang-cn/fixdoc/internal/api/documents"
	"github.com/liliang-cn/fixdoc/internal/api/middleware"
	"github.com/liliang-cn/fixdoc/internal/config"
	"github.com/liliang-cn/fixdoc/internal/service"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Accounts        map[string]string
	AllowOrigins    []string
	RateLimit       bool
	RequestsPerHour int
	Burst           int
}

// NewRouterConfig derives the router settings from the loaded configuration
func NewRouterConfig(cfg *config.Config) RouterConfig {
	return RouterConfig{
		Accounts:        cfg.AccountsByKey(),
		AllowOrigins:    cfg.Server.AllowOrigins,
		RateLimit:       cfg.RateLimit.Enabled,
		RequestsPerHour: cfg.RateLimit.RequestsPerHour,
		Burst:           cfg.RateLimit.Burst,
	}
}

// SetupRouter sets up the Gin router
func SetupRouter(engine *service.Engine, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger.Named("http")))
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		report := engine.Health(c.Request.Context())
		status := http.StatusOK
		if report.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})

	if len(cfg.Accounts) == 0 {
		logger.Warn("no API keys configured, all requests run as the local account")
	}

	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.Auth(cfg.Accounts))
	if cfg.RateLimit {
		apiGroup.Use(middleware.NewRateLimiter(cfg.RequestsPerHour, cfg.Burst).Middleware())
	}

	documents.NewHandler(engine.Ingest, engine.Catalog).RegisterRoutes(apiGroup)
	chat.NewHandler(engine.Chat, engine.Feedback).RegisterRoutes(apiGroup)

	return r
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpH "github.com/yungbote/browserjobs-backend/internal/http/handlers"
	httpMW "github.com/yungbote/browserjobs-backend/internal/http/middleware"
	"github.com/yungbote/browserjobs-backend/internal/observability"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

type RouterConfig struct {
	ExecuteHandler  *httpH.ExecuteHandler
	ValidateHandler *httpH.ValidateHandler
	QueueHandler    *httpH.QueueHandler
	VideoHandler    *httpH.VideoHandler
	HealthHandler   *httpH.HealthHandler
	AdminHandler    *httpH.AdminHandler

	AuthMiddleware *httpMW.AuthMiddleware
	Metrics        *observability.Metrics
	Log            *logger.Logger
	CORSOrigins    []string
}

// NewRouter lays out the §6 route table: unauthenticated /validate,
// /queue/status, /health, /metrics; everything touching a specific
// job or video goes through the auth seam.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.CORSOrigins...))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.ValidateHandler != nil {
		r.POST("/validate", cfg.ValidateHandler.Validate)
	}
	if cfg.QueueHandler != nil {
		r.GET("/queue/status", cfg.QueueHandler.Status)
	}

	protected := r.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		if cfg.ExecuteHandler != nil {
			protected.POST("/execute", cfg.ExecuteHandler.Execute)
		}
		if cfg.VideoHandler != nil {
			protected.GET("/video/:request_id/info", cfg.VideoHandler.Info)
			protected.GET("/video/:request_id/:token", cfg.VideoHandler.Stream)
		}
		if cfg.AdminHandler != nil {
			protected.DELETE("/admin/videos/cleanup", cfg.AdminHandler.ForceCleanup)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "not found", "code": "not_found"}})
	})

	return r
}

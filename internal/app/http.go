package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/browserjobs-backend/internal/browserpool"
	"github.com/yungbote/browserjobs-backend/internal/cleanup"
	"github.com/yungbote/browserjobs-backend/internal/data/repos/jobstore"
	"github.com/yungbote/browserjobs-backend/internal/executor"
	"github.com/yungbote/browserjobs-backend/internal/health"
	apphttp "github.com/yungbote/browserjobs-backend/internal/http"
	httpH "github.com/yungbote/browserjobs-backend/internal/http/handlers"
	httpMW "github.com/yungbote/browserjobs-backend/internal/http/middleware"
	"github.com/yungbote/browserjobs-backend/internal/observability"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
	"github.com/yungbote/browserjobs-backend/internal/queue"
	"github.com/yungbote/browserjobs-backend/internal/videostore"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Execute  *httpH.ExecuteHandler
	Validate *httpH.ValidateHandler
	Queue    *httpH.QueueHandler
	Video    *httpH.VideoHandler
	Health   *httpH.HealthHandler
	Admin    *httpH.AdminHandler
}

func wireHandlers(
	log *logger.Logger,
	cfg Config,
	store jobstore.JobStore,
	q *queue.Queue,
	pool *browserpool.Pool,
	breaker *executor.Breaker,
	videos *videostore.Store,
	healthAgg *health.Aggregator,
	cleanupSvc *cleanup.Scheduler,
) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Execute:  httpH.NewExecuteHandler(log, store, q, breaker, cfg.MaxScriptSize),
		Validate: httpH.NewValidateHandler(cfg.MaxScriptSize),
		Queue:    httpH.NewQueueHandler(q, store),
		Video:    httpH.NewVideoHandler(store, videos),
		Health:   httpH.NewHealthHandler(healthAgg),
		Admin:    httpH.NewAdminHandler(cleanupSvc),
	}
}

func wireMiddleware(log *logger.Logger) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log),
	}
}

func wireRouter(handlers Handlers, middleware Middleware, metrics *observability.Metrics, log *logger.Logger, corsOrigins []string) *gin.Engine {
	return apphttp.NewRouter(apphttp.RouterConfig{
		ExecuteHandler:  handlers.Execute,
		ValidateHandler: handlers.Validate,
		QueueHandler:    handlers.Queue,
		VideoHandler:    handlers.Video,
		HealthHandler:   handlers.Health,
		AdminHandler:    handlers.Admin,
		AuthMiddleware:  middleware.Auth,
		Metrics:         metrics,
		Log:             log,
		CORSOrigins:     corsOrigins,
	})
}

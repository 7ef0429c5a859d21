package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotesync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotesync/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotesync/internal/platform/config"
	"github.com/jsamuelsen/quotesync/internal/platform/telemetry"
)

// DefaultRequestTimeout applies when RouterConfig.Timeout is zero.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig holds what SetupRouter mounts. Nil handlers are skipped.
type RouterConfig struct {
	ServiceName string
	Auth        *config.AuthConfig
	Timeout     time.Duration

	Health        *handlers.HealthHandler
	Quotes        *handlers.QuoteHandler
	Sync          *handlers.SyncHandler
	Notifications *handlers.NotificationHandler
}

// SetupRouter installs the middleware chain and routes on engine.
//
// Middleware order: recovery, request ID, correlation ID, tracing, server
// metrics, request logging. The /api/v1 group adds the request timeout;
// mutating routes add middleware.RequireWriter. Probes under /-/ carry no
// timeout and no auth.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.ServiceName),
		telemetry.Middleware(),
		middleware.Logging(),
	)

	if cfg.Health != nil {
		cfg.Health.RegisterHealthRoutes(engine.Group("/-"))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	api := engine.Group("/api/v1")
	api.Use(middleware.Timeout(timeout))

	guard := middleware.RequireWriter(cfg.Auth)

	if cfg.Quotes != nil {
		cfg.Quotes.RegisterQuoteRoutes(api, guard)
	}

	if cfg.Sync != nil {
		cfg.Sync.RegisterSyncRoutes(api, guard)
	}

	if cfg.Notifications != nil {
		cfg.Notifications.RegisterNotificationRoutes(api)
	}
}

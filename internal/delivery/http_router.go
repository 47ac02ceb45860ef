package delivery

import (
	"adperf/internal/delivery/middleware"
	"adperf/pkg/config"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type HTTPRouter struct {
	handlers *HTTPHandlers
	server   config.ServerConfig
	gatherer prometheus.Gatherer
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewHTTPRouter builds the router. gatherer backs /metrics; nil serves the
// default registry.
func NewHTTPRouter(handlers *HTTPHandlers, server config.ServerConfig, gatherer prometheus.Gatherer, logger *logger.Logger, metrics *metrics.Metrics) *HTTPRouter {
	return &HTTPRouter{
		handlers: handlers,
		server:   server,
		gatherer: gatherer,
		logger:   logger,
		metrics:  metrics,
	}
}

func (r *HTTPRouter) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.Recovery(r.logger))
	router.Use(middleware.Metrics(r.metrics))
	if r.server.RequestTimeout > 0 {
		router.Use(middleware.Timeout(r.server.RequestTimeout))
	}

	config := cors.DefaultConfig()
	if len(r.server.AllowedOrigins) > 0 {
		config.AllowOrigins = r.server.AllowedOrigins
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "X-Request-ID"}
	config.ExposeHeaders = []string{"X-Request-ID"}

	router.Use(cors.New(config))

	// Health endpoint
	router.GET("/health", r.handlers.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/", r.handlers.GetAPIInfo)
		v1.GET("", r.handlers.GetAPIInfo)

		ingest := v1.Group("/ingest")
		{
			ingest.POST("/upload", r.handlers.IngestUpload)
		}

		v1.GET("/views/:level", r.handlers.GetView)
		v1.GET("/timeline", r.handlers.GetTimeline)
		v1.GET("/overview", r.handlers.GetOverview)
		v1.GET("/store/summary", r.handlers.GetStoreSummary)

		export := v1.Group("/export")
		{
			export.POST("/run", r.handlers.ExportRun)
		}
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler(r.gatherer))

	return router
}

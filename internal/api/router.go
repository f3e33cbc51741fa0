// Package api exposes the analysis service over HTTP.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"backtester/internal/config"
	"backtester/internal/metrics"
)

// NewRouter builds the HTTP handler. m may be nil, in which case /metrics is not served.
func NewRouter(svc AnalysisService, cfg config.ServerConfig, logger *slog.Logger, m *metrics.Metrics) *gin.Engine {
	logger = logger.With("component", "api")
	h := &handler{svc: svc, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(logger, m), corsMiddleware(cfg.AllowedOrigins))

	r.GET("/", h.root)
	r.GET("/health", h.health)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/analyze", h.analyze)
		api.GET("/symbols", h.symbols)
	}
	return r
}

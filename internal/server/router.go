package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	PatternHandler *PatternHandler
	HealthHandler  *HealthHandler
	Gatherer       prometheus.Gatherer // serves /metrics when set
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Metrics
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		if cfg.PatternHandler != nil {
			api.GET("/patterns", cfg.PatternHandler.ListPatterns)
			api.POST("/patterns", cfg.PatternHandler.CreatePattern)
			api.POST("/patterns/import", cfg.PatternHandler.ImportPattern)
			api.GET("/patterns/:id", cfg.PatternHandler.GetPattern)
			api.PATCH("/patterns/:id", cfg.PatternHandler.UpdatePattern)
			api.DELETE("/patterns/:id", cfg.PatternHandler.DeletePattern)
			api.GET("/patterns/:id/export", cfg.PatternHandler.ExportPattern)
		}
	}

	return r
}

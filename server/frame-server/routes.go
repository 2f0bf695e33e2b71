package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yeti47/framesight/server/core/config"
	"github.com/yeti47/framesight/server/frame-server/handlers"
)

// newRouter builds the gin engine serving the upload API
func newRouter(a *app) (*gin.Engine, error) {
	router, err := initializeGin(a.cfg)
	if err != nil {
		return nil, err
	}

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	if a.cfg.CORS.Enabled {
		// global middleware also answers preflights for routes without an OPTIONS handler
		router.Use(cors.New(corsConfig(a.cfg.CORS)))
	}

	setupRoutes(router, a.handler, a.registry, a.cfg.MaxUploadBytes())
	return router, nil
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if cfg.AllowsAnyOrigin() {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return c
}

// setupRoutes configures the HTTP routes
func setupRoutes(router *gin.Engine, uploadHandler *handlers.UploadHandler, registry *prometheus.Registry, maxUploadBytes int64) {
	uploads := router.Group("/")
	uploads.Use(limitBody(maxUploadBytes))

	uploads.POST("/video", uploadHandler.UploadVideo)
	uploads.POST("/image", uploadHandler.UploadImages)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "frame-server",
		})
	})
}

// limitBody caps request bodies at maxBytes
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

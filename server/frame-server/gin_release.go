//go:build release

package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/yeti47/framesight/server/core/config"
)

// initializeGin sets up Gin in release mode for production builds
func initializeGin(cfg *config.Config) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// no configured proxies means none are trusted
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	return router, nil
}

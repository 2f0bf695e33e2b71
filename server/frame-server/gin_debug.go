//go:build !release

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/yeti47/framesight/server/core/config"
)

// initializeGin returns a debug mode engine that trusts every proxy
func initializeGin(_ *config.Config) (*gin.Engine, error) {
	return gin.New(), nil
}

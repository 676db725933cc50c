// Package routes wires the HTTP surface: middleware, /v1 API and probes.
package routes

import (
	"net/http"

	"github.com/address-resolver/app/controllers"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options toggles optional middleware.
type Options struct {
	RateLimit float64
	RateBurst int
	Gzip      bool
}

// SetupAllRoutes installs middleware and every route.
func SetupAllRoutes(router *gin.Engine, addressController *controllers.AddressController, adminController *controllers.AdminController, opts Options, logger *zap.Logger) {
	router.Use(RequestID(), Recovery(logger), Logger(logger))

	SetupHealthRoutes(router, addressController)
	SetupAPIRoutes(router, addressController, adminController, opts)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "Route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})
}

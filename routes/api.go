package routes

import (
	"github.com/address-resolver/app/controllers"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// SetupAPIRoutes mounts the /v1 endpoints.
func SetupAPIRoutes(router *gin.Engine, addressController *controllers.AddressController, adminController *controllers.AdminController, opts Options) {
	v1 := router.Group("/v1")
	if opts.Gzip {
		// Job results negotiate their own compression.
		v1.Use(gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedPathsRegexs([]string{`/jobs/[^/]+/results$`})))
	}
	if opts.RateLimit > 0 {
		v1.Use(RateLimit(opts.RateLimit, opts.RateBurst))
	}
	{
		addresses := v1.Group("/addresses")
		{
			addresses.POST("/resolve", addressController.Resolve)
			addresses.POST("/batch", addressController.ResolveBatch)
			addresses.POST("/jobs", addressController.SubmitJob)
			addresses.GET("/jobs/:jobID/status", addressController.GetJobStatus)
			addresses.GET("/jobs/:jobID/results", addressController.GetJobResults)
			addresses.POST("/compare", addressController.Compare)
			addresses.POST("/cluster", addressController.Cluster)
			addresses.POST("/validate", addressController.Validate)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/records", adminController.InsertRecord)
			admin.POST("/reference/seed", adminController.SeedReference)
			admin.GET("/reference/search", adminController.SearchReference)
			admin.GET("/reference/export", adminController.ExportReference)
			admin.POST("/cache/invalidate", adminController.InvalidateCache)
			admin.GET("/stats", adminController.GetStats)
		}

		v1.GET("/health", addressController.HealthCheck)
	}
}

// SetupHealthRoutes mounts the probe endpoints at the root.
func SetupHealthRoutes(router *gin.Engine, addressController *controllers.AddressController) {
	router.GET("/health", addressController.HealthCheck)
	router.GET("/ready", addressController.ReadyCheck)
	router.GET("/live", addressController.HealthCheck)
}

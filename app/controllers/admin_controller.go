package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/address-resolver/app/requests"
	"github.com/address-resolver/app/responses"
	"github.com/address-resolver/app/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminController serves store, reference and cache administration.
type AdminController struct {
	adminService *services.AdminService
	logger       *zap.Logger
}

func NewAdminController(adminService *services.AdminService, logger *zap.Logger) *AdminController {
	return &AdminController{
		adminService: adminService,
		logger:       logger,
	}
}

// InsertRecord adds a candidate record.
func (ac *AdminController) InsertRecord(c *gin.Context) {
	var req requests.InsertRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := ac.adminService.InsertRecord(c.Request.Context(), req.Record())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, responses.InsertRecordResponse{ID: id})
}

// SeedReference mirrors the reference hierarchy into Meilisearch.
func (ac *AdminController) SeedReference(c *gin.Context) {
	result, err := ac.adminService.SeedReference(c.Request.Context())
	if err != nil {
		ac.logger.Error("Reference seed failed", zap.Error(err))
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.SeedReferenceResponse{
		UnitsProcessed:   result.UnitsProcessed,
		ReferenceVersion: result.ReferenceVersion,
		ProcessingTimeMs: result.ProcessingTimeMs,
		Message:          "Reference units seeded",
	})
}

// SearchReference looks reference units up by name: ?q=moda&limit=20.
func (ac *AdminController) SearchReference(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		abort(c, http.StatusBadRequest, "MISSING_QUERY", "Query parameter q is required")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		abort(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
		return
	}
	units, err := ac.adminService.SearchReference(c.Request.Context(), query, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.ReferenceSearchResponse{Units: units, Total: len(units)})
}

// ExportReference downloads the loaded reference units as XLSX.
func (ac *AdminController) ExportReference(c *gin.Context) {
	dir, err := os.MkdirTemp("", "reference-export")
	if err != nil {
		fail(c, err)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "reference.xlsx")
	n, err := ac.adminService.ExportReference(path)
	if err != nil {
		ac.logger.Error("Reference export failed", zap.Error(err))
		fail(c, err)
		return
	}
	ac.logger.Info("Reference exported", zap.Int("units", n))
	c.FileAttachment(path, "reference_"+time.Now().Format("20060102")+".xlsx")
}

// InvalidateCache drops cached results of other dictionary versions.
func (ac *AdminController) InvalidateCache(c *gin.Context) {
	var req requests.InvalidateCacheRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if err := ac.adminService.InvalidateCache(c.Request.Context(), req.DictionaryVersion); err != nil {
		ac.logger.Error("Cache invalidation failed", zap.Error(err))
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "Cache invalidated",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// GetStats returns the system overview.
func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.adminService.GetSystemStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

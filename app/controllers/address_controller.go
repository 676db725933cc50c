package controllers

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/app/requests"
	"github.com/address-resolver/app/responses"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/internal/pipeline"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

// AddressController serves the resolution endpoints.
type AddressController struct {
	addressService *services.AddressService
	probes         map[string]func(context.Context) error
	logger         *zap.Logger
}

// NewAddressController builds the controller. probes back /ready and may be nil.
func NewAddressController(addressService *services.AddressService, probes map[string]func(context.Context) error, logger *zap.Logger) *AddressController {
	return &AddressController{
		addressService: addressService,
		probes:         probes,
		logger:         logger,
	}
}

// Resolve runs one address through the pipeline.
func (ac *AddressController) Resolve(c *gin.Context) {
	var req requests.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	startTime := time.Now()
	result, cached := ac.addressService.Resolve(c.Request.Context(), req.Address.Raw(), req.Options.UseCache)

	if req.Options.TopK > 0 && len(result.Candidates) > req.Options.TopK {
		trimmed := *result
		trimmed.Candidates = result.Candidates[:req.Options.TopK]
		result = &trimmed
	}

	// Invalid input is the caller's fault; other failures still return the
	// partial result with its error block.
	status := http.StatusOK
	if result.Failed() && result.Error != nil && result.Error.Kind == string(pipeline.KindInvalidInput) {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, responses.ResolveResponse{
		Result:            result,
		DictionaryVersion: ac.addressService.DictionaryVersion(),
		ProcessingTimeMs:  time.Since(startTime).Milliseconds(),
		CacheHit:          cached,
	})
}

// ResolveBatch runs a batch synchronously.
func (ac *AddressController) ResolveBatch(c *gin.Context) {
	var req requests.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	batch := ac.addressService.ResolveBatch(c.Request.Context(), req.Raw())
	c.JSON(http.StatusOK, batch)
}

// SubmitJob queues a batch for background processing.
func (ac *AddressController) SubmitJob(c *gin.Context) {
	var req requests.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	job, err := ac.addressService.SubmitJob(c.Request.Context(), req.Raw())
	if err != nil {
		ac.logger.Error("Job submission failed", zap.Error(err))
		fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, responses.JobAcceptedResponse{
		JobID:          job.ID,
		Status:         string(job.Status),
		TotalAddresses: len(req.Addresses),
		Message:        "Job accepted",
	})
}

// GetJobStatus reports a job's progress.
func (ac *AddressController) GetJobStatus(c *gin.Context) {
	job, err := ac.addressService.Job(c.Request.Context(), c.Param("jobID"))
	if err != nil {
		fail(c, err)
		return
	}

	resp := responses.JobStatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Pending:   len(job.Inputs),
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.Result != nil {
		resp.Succeeded = job.Result.Succeeded
		resp.Failed = job.Result.Failed
		resp.Pending = job.Result.Pending
	}
	c.JSON(http.StatusOK, resp)
}

// GetJobResults returns a finished job's results, as one JSON document or
// as NDJSON (optionally gzipped) with ?format=ndjson&gzip=1.
func (ac *AddressController) GetJobResults(c *gin.Context) {
	batch, err := ac.addressService.JobResults(c.Request.Context(), c.Param("jobID"))
	if err != nil {
		fail(c, err)
		return
	}

	if c.Query("format") == "ndjson" {
		ac.streamNDJSON(c, batch.Results, c.Query("gzip") == "1")
		return
	}
	c.JSON(http.StatusOK, batch)
}

// Compare scores two addresses against each other.
func (ac *AddressController) Compare(c *gin.Context) {
	var req requests.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sim, err := ac.addressService.Compare(c.Request.Context(), req.First.Raw(), req.Second.Raw())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.CompareResponse{Similarity: sim})
}

// Cluster groups duplicate addresses.
func (ac *AddressController) Cluster(c *gin.Context) {
	var req requests.ClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	groups, err := ac.addressService.Cluster(c.Request.Context(), req.Raw())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.ClusterResponse{Clusters: groups, Total: len(groups)})
}

// Validate checks components against the reference hierarchy.
func (ac *AddressController) Validate(c *gin.Context) {
	var req requests.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	components := models.ComponentsFromMap(req.Components, 1, req.Coordinates)
	c.JSON(http.StatusOK, ac.addressService.Validate(components))
}

// HealthCheck reports liveness.
func (ac *AddressController) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, responses.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    ac.addressService.Stats().Uptime,
		Version:   Version,
		Services:  map[string]string{"resolver": "healthy"},
	})
}

// ReadyCheck probes backing services and answers 503 if any is down.
func (ac *AddressController) ReadyCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	states := map[string]string{"resolver": "healthy"}
	for name, probe := range ac.probes {
		if err := probe(ctx); err != nil {
			ac.logger.Warn("Readiness probe failed", zap.String("service", name), zap.Error(err))
			states[name] = "unhealthy: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		states[name] = "healthy"
	}
	c.JSON(code, responses.HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    ac.addressService.Stats().Uptime,
		Version:   Version,
		Services:  states,
	})
}

func (ac *AddressController) streamNDJSON(c *gin.Context, results []*models.ProcessingResult, gzipEnabled bool) {
	c.Header("Content-Type", "application/x-ndjson")
	if gzipEnabled {
		c.Header("Content-Encoding", "gzip")
	}
	c.Status(http.StatusOK)

	var writer gin.ResponseWriter = c.Writer
	if gzipEnabled {
		gzWriter := gzip.NewWriter(c.Writer)
		defer gzWriter.Close()
		writer = &gzipResponseWriter{ResponseWriter: c.Writer, gzWriter: gzWriter}
	}

	encoder := json.NewEncoder(writer)
	for _, result := range results {
		if err := encoder.Encode(result); err != nil {
			ac.logger.Error("NDJSON encode failed", zap.Error(err))
			return
		}
		writer.Flush()
	}
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gzWriter *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.gzWriter.Write(data)
}

func (w *gzipResponseWriter) Flush() {
	_ = w.gzWriter.Flush()
	w.ResponseWriter.Flush()
}

package responses

import (
	"github.com/address-resolver/app/models"
)

// ResolveResponse wraps a single processing result.
type ResolveResponse struct {
	Result            *models.ProcessingResult `json:"result"`
	DictionaryVersion string                   `json:"dictionary_version"`
	ProcessingTimeMs  int64                    `json:"processing_time_ms"`
	CacheHit          bool                     `json:"cache_hit"`
}

// JobAcceptedResponse acknowledges an asynchronous batch.
type JobAcceptedResponse struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	TotalAddresses int    `json:"total_addresses"`
	Message        string `json:"message"`
}

// JobStatusResponse reports job progress.
type JobStatusResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Pending   int    `json:"pending"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CompareResponse is the similarity of two addresses.
type CompareResponse struct {
	Similarity models.SimilarityBreakdown `json:"similarity"`
}

// ClusterResponse lists duplicate groups by input index.
type ClusterResponse struct {
	Clusters [][]int `json:"clusters"`
	Total    int     `json:"total"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp string      `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// SuccessResponse wraps plain acknowledgements.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// HealthCheckResponse reports liveness and dependency state.
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}

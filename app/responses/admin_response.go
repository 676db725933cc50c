package responses

import (
	"github.com/address-resolver/app/models"
)

// InsertRecordResponse returns the id of a stored record.
type InsertRecordResponse struct {
	ID string `json:"id"`
}

// SeedReferenceResponse reports a reference seed run.
type SeedReferenceResponse struct {
	UnitsProcessed   int    `json:"units_processed"`
	ReferenceVersion string `json:"reference_version"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Message          string `json:"message"`
}

// ReferenceSearchResponse lists matching reference units.
type ReferenceSearchResponse struct {
	Units []models.ReferenceUnit `json:"units"`
	Total int                    `json:"total"`
}

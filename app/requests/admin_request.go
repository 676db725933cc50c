package requests

import (
	"github.com/address-resolver/app/models"
)

// InsertRecordRequest adds a candidate record to the store.
type InsertRecordRequest struct {
	RawText        string              `json:"raw_text" binding:"required"`
	NormalizedText string              `json:"normalized_text,omitempty"`
	Components     map[string]string   `json:"components,omitempty"`
	Coordinates    *models.GeoPoint    `json:"coordinates,omitempty"`
	Confidence     float64             `json:"confidence" binding:"min=0,max=1"`
	Status         models.RecordStatus `json:"status,omitempty"`
}

func (r InsertRecordRequest) Record() models.AddressRecord {
	return models.AddressRecord{
		RawText:        r.RawText,
		NormalizedText: r.NormalizedText,
		Components:     r.Components,
		Coordinates:    r.Coordinates,
		Confidence:     r.Confidence,
		Status:         r.Status,
	}
}

// InvalidateCacheRequest drops cached results not built with
// DictionaryVersion; an empty version clears the cache.
type InvalidateCacheRequest struct {
	DictionaryVersion string `json:"dictionary_version,omitempty"`
}

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecordStatus is the review state of a stored address.
type RecordStatus string

const (
	RecordValid       RecordStatus = "valid"
	RecordInvalid     RecordStatus = "invalid"
	RecordNeedsReview RecordStatus = "needs_review"
)

// AddressRecord is a row of the candidate store.
type AddressRecord struct {
	ID             string            `bson:"_id" json:"id"`
	RawText        string            `bson:"raw_text" json:"raw_text"`
	NormalizedText string            `bson:"normalized_text,omitempty" json:"normalized_text,omitempty"`
	Components     map[string]string `bson:"components,omitempty" json:"components,omitempty"`
	Coordinates    *GeoPoint         `bson:"-" json:"coordinates,omitempty"`
	Confidence     float64           `bson:"confidence" json:"confidence"`
	Status         RecordStatus      `bson:"status" json:"status"`
	CreatedAt      time.Time         `bson:"created_at" json:"created_at"`

	// DistanceMeters is filled by radius queries only.
	DistanceMeters *float64 `bson:"-" json:"distance_meters,omitempty"`
}

// ErrInvalidRecord is returned when a record fails Validate.
var ErrInvalidRecord = errors.New("invalid address record")

// IsValidStatus reports whether s is a known record status.
func IsValidStatus(s RecordStatus) bool {
	switch s {
	case RecordValid, RecordInvalid, RecordNeedsReview:
		return true
	}
	return false
}

// Validate checks the insertion contract.
func (r *AddressRecord) Validate() error {
	if strings.TrimSpace(r.RawText) == "" {
		return fmt.Errorf("%w: raw text is required", ErrInvalidRecord)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.3f outside [0,1]", ErrInvalidRecord, r.Confidence)
	}
	if r.Status == "" {
		r.Status = RecordNeedsReview
	}
	if !IsValidStatus(r.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, r.Status)
	}
	if r.Coordinates != nil && !r.Coordinates.Valid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidRecord)
	}
	return nil
}

// Text returns the best available text for scoring.
func (r *AddressRecord) Text() string {
	if r.NormalizedText != "" {
		return r.NormalizedText
	}
	return r.RawText
}

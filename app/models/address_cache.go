package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AddressCache is the persisted form of a cached processing result.
type AddressCache struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RawFingerprint    string             `bson:"raw_fingerprint" json:"raw_fingerprint"`
	RawAddress        string             `bson:"raw_address" json:"raw_address"`
	NormalizedText    string             `bson:"normalized_text" json:"normalized_text"`
	Result            ProcessingResult   `bson:"result" json:"result"`
	Confidence        float64            `bson:"confidence" json:"confidence"`
	DictionaryVersion string             `bson:"dictionary_version" json:"dictionary_version"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	LastAccessed      time.Time          `bson:"last_accessed" json:"last_accessed"`
	AccessCount       int                `bson:"access_count" json:"access_count"`
}

// NewAddressCache wraps a result for persistence.
func NewAddressCache(fingerprint string, result *ProcessingResult) *AddressCache {
	now := time.Now()
	return &AddressCache{
		RawFingerprint:    fingerprint,
		RawAddress:        result.Raw,
		NormalizedText:    result.NormalizedText,
		Result:            *result,
		Confidence:        result.OverallConfidence,
		DictionaryVersion: result.DictionaryVersion,
		CreatedAt:         now,
		LastAccessed:      now,
		AccessCount:       1,
	}
}

// IsExpired reports whether the entry is older than ttl.
func (ac *AddressCache) IsExpired(ttl time.Duration) bool {
	return ttl > 0 && time.Since(ac.CreatedAt) > ttl
}

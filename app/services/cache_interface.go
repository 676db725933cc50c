package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/address-resolver/app/models"
)

// CacheStats summarises cache effectiveness.
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ICacheService caches processing results by input fingerprint.
type ICacheService interface {
	Get(ctx context.Context, key string) (*models.ProcessingResult, bool, error)
	Set(ctx context.Context, key string, result *models.ProcessingResult) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	// InvalidateByDictionaryVersion drops entries built with any other version.
	InvalidateByDictionaryVersion(ctx context.Context, version string) error
	GetStats(ctx context.Context) (*CacheStats, error)
	Exists(ctx context.Context, key string) (bool, error)
	// GetTTL returns the remaining lifetime, 0 when entries do not expire.
	GetTTL(ctx context.Context, key string) (time.Duration, error)
	Close() error
}

// CacheKey fingerprints an input together with the dictionary version, so a
// dictionary upgrade never serves stale results.
func CacheKey(in models.RawInput, dictionaryVersion string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Text))
	b.WriteByte('|')
	if in.Coordinates != nil {
		fmt.Fprintf(&b, "%.6f,%.6f", in.Coordinates.Lat, in.Coordinates.Lon)
	}
	b.WriteByte('|')
	b.WriteString(dictionaryVersion)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func hitRate(hits, misses int64) float64 {
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total)
	}
	return 0
}

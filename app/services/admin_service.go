package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/reference"
	"github.com/address-resolver/internal/search"
	"github.com/address-resolver/internal/store"
	"go.uber.org/zap"
)

var (
	ErrNoStore        = errors.New("candidate store not configured")
	ErrSearchDisabled = errors.New("meilisearch not configured")
)

// AdminService manages candidate records, the search mirror of the
// reference data and the result cache.
type AdminService struct {
	store     store.CandidateStore
	index     *reference.Index
	refIndex  *search.ReferenceIndex
	cache     ICacheService
	addresses *AddressService
	logger    *zap.Logger
}

// NewAdminService builds the service. st, refIndex and cache may be nil.
func NewAdminService(st store.CandidateStore, index *reference.Index, refIndex *search.ReferenceIndex, cache ICacheService, addresses *AddressService, logger *zap.Logger) *AdminService {
	return &AdminService{
		store:     st,
		index:     index,
		refIndex:  refIndex,
		cache:     cache,
		addresses: addresses,
		logger:    logger,
	}
}

// InsertRecord adds a candidate record and returns its id.
func (as *AdminService) InsertRecord(ctx context.Context, rec models.AddressRecord) (string, error) {
	if as.store == nil {
		return "", ErrNoStore
	}
	id, err := as.store.Insert(ctx, rec)
	if err != nil {
		return "", err
	}
	as.logger.Info("Candidate record inserted", zap.String("id", id), zap.String("status", string(rec.Status)))
	return id, nil
}

// SeedResult reports a reference seed run.
type SeedResult struct {
	UnitsProcessed   int    `json:"units_processed"`
	ReferenceVersion string `json:"reference_version"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// SeedReference mirrors the loaded reference units into Meilisearch.
func (as *AdminService) SeedReference(ctx context.Context) (*SeedResult, error) {
	if as.refIndex == nil {
		return nil, ErrSearchDisabled
	}
	start := time.Now()
	if err := as.refIndex.EnsureSettings(); err != nil {
		return nil, err
	}
	n, err := as.refIndex.Seed(ctx, as.index.Units())
	if err != nil {
		return nil, fmt.Errorf("seed reference units: %w", err)
	}
	elapsed := time.Since(start)
	as.logger.Info("Reference seed completed",
		zap.String("reference_version", as.index.Version()),
		zap.Int("units", n),
		zap.Duration("elapsed", elapsed))
	return &SeedResult{UnitsProcessed: n, ReferenceVersion: as.index.Version(), ProcessingTimeMs: elapsed.Milliseconds()}, nil
}

// SearchReference finds reference units by name. It uses Meilisearch when
// configured and a prefix scan of the in-memory index otherwise.
func (as *AdminService) SearchReference(ctx context.Context, query string, limit int) ([]models.ReferenceUnit, error) {
	if as.refIndex != nil {
		units, err := as.refIndex.Search(ctx, query, limit)
		if err == nil {
			return units, nil
		}
		as.logger.Warn("Reference search failed, using local index", zap.Error(err))
	}
	units := as.index.Find("", "", query)
	if len(units) == 0 {
		units = as.index.Find("", query, "")
	}
	if len(units) == 0 {
		units = as.index.Find(query, "", "")
	}
	if limit > 0 && len(units) > limit {
		units = units[:limit]
	}
	return units, nil
}

// InvalidateCache drops entries from other dictionary versions, or
// everything when version is empty.
func (as *AdminService) InvalidateCache(ctx context.Context, version string) error {
	if as.cache == nil {
		return nil
	}
	if version == "" {
		return as.cache.Clear(ctx)
	}
	return as.cache.InvalidateByDictionaryVersion(ctx, version)
}

// ExportReference writes the loaded reference units to an XLSX file.
func (as *AdminService) ExportReference(path string) (int, error) {
	units := as.index.Units()
	if err := reference.WriteXLSX(path, units); err != nil {
		return 0, err
	}
	return len(units), nil
}

// SystemStats is the admin overview.
type SystemStats struct {
	Processing        ProcessingStats        `json:"processing"`
	Reference         reference.Stats        `json:"reference"`
	DictionaryVersion string                 `json:"dictionary_version"`
	Cache             *CacheStats            `json:"cache,omitempty"`
	MemoryUsage       map[string]interface{} `json:"memory_usage"`
	Goroutines        int                    `json:"goroutines"`
}

func (as *AdminService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		Processing:        as.addresses.Stats(),
		Reference:         as.index.Stats(),
		DictionaryVersion: as.addresses.pipeline.DictionaryVersion(),
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       bToMb(m.Alloc),
			"total_alloc_mb": bToMb(m.TotalAlloc),
			"sys_mb":         bToMb(m.Sys),
			"num_gc":         m.NumGC,
		},
		Goroutines: runtime.NumGoroutine(),
	}
	if as.cache != nil {
		cs, err := as.cache.GetStats(ctx)
		if err != nil {
			as.logger.Warn("Cache stats unavailable", zap.Error(err))
		}
		stats.Cache = cs
	}
	return stats, nil
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

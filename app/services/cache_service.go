package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheService is an in-process cache with LRU eviction and a TTL.
type CacheService struct {
	cache  *expirable.LRU[string, *models.ProcessingResult]
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

func NewCacheService(size int, ttl time.Duration) *CacheService {
	if size <= 0 {
		size = 10000
	}
	return &CacheService{
		cache: expirable.NewLRU[string, *models.ProcessingResult](size, nil, ttl),
		ttl:   ttl,
	}
}

func (cs *CacheService) Get(_ context.Context, key string) (*models.ProcessingResult, bool, error) {
	if res, ok := cs.cache.Get(key); ok {
		cs.hits.Add(1)
		return res, true, nil
	}
	cs.misses.Add(1)
	return nil, false, nil
}

func (cs *CacheService) Set(_ context.Context, key string, result *models.ProcessingResult) error {
	cs.cache.Add(key, result)
	return nil
}

func (cs *CacheService) Delete(_ context.Context, key string) error {
	cs.cache.Remove(key)
	return nil
}

func (cs *CacheService) Clear(context.Context) error {
	cs.cache.Purge()
	cs.hits.Store(0)
	cs.misses.Store(0)
	return nil
}

func (cs *CacheService) InvalidateByDictionaryVersion(_ context.Context, version string) error {
	for _, key := range cs.cache.Keys() {
		if res, ok := cs.cache.Peek(key); ok && res.DictionaryVersion != version {
			cs.cache.Remove(key)
		}
	}
	return nil
}

func (cs *CacheService) GetStats(context.Context) (*CacheStats, error) {
	hits, misses := cs.hits.Load(), cs.misses.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: int64(cs.cache.Len()),
	}, nil
}

func (cs *CacheService) Exists(_ context.Context, key string) (bool, error) {
	return cs.cache.Contains(key), nil
}

// GetTTL reports the configured TTL for present keys; expirable does not
// expose per-entry deadlines.
func (cs *CacheService) GetTTL(_ context.Context, key string) (time.Duration, error) {
	if !cs.cache.Contains(key) {
		return 0, nil
	}
	return cs.ttl, nil
}

func (cs *CacheService) Close() error { return nil }

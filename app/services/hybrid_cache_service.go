package services

import (
	"context"
	"errors"
	"time"

	"github.com/address-resolver/app/models"
	"go.uber.org/zap"
)

// HybridCacheService layers a fast cache (normally Redis) over a persistent
// one (normally MongoDB). Writes go to both tiers in parallel.
type HybridCacheService struct {
	l1     ICacheService
	l2     ICacheService
	logger *zap.Logger
}

func NewHybridCacheService(l1, l2 ICacheService, logger *zap.Logger) *HybridCacheService {
	return &HybridCacheService{l1: l1, l2: l2, logger: logger}
}

func (hcs *HybridCacheService) Get(ctx context.Context, key string) (*models.ProcessingResult, bool, error) {
	result, found, err := hcs.l1.Get(ctx, key)
	if err != nil {
		hcs.logger.Warn("L1 cache failed, falling back to L2", zap.Error(err))
	} else if found {
		return result, true, nil
	}

	result, found, err = hcs.l2.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	// promote in the background
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hcs.l1.Set(bgCtx, key, result); err != nil {
			hcs.logger.Warn("L2 to L1 promotion failed", zap.Error(err), zap.String("key", key))
		}
	}()
	return result, true, nil
}

func (hcs *HybridCacheService) Set(ctx context.Context, key string, result *models.ProcessingResult) error {
	return both(
		func() error { return hcs.l1.Set(ctx, key, result) },
		func() error { return hcs.l2.Set(ctx, key, result) },
	)
}

func (hcs *HybridCacheService) Delete(ctx context.Context, key string) error {
	return both(
		func() error { return hcs.l1.Delete(ctx, key) },
		func() error { return hcs.l2.Delete(ctx, key) },
	)
}

func (hcs *HybridCacheService) Clear(ctx context.Context) error {
	return both(
		func() error { return hcs.l1.Clear(ctx) },
		func() error { return hcs.l2.Clear(ctx) },
	)
}

func (hcs *HybridCacheService) InvalidateByDictionaryVersion(ctx context.Context, version string) error {
	return both(
		func() error { return hcs.l1.InvalidateByDictionaryVersion(ctx, version) },
		func() error { return hcs.l2.InvalidateByDictionaryVersion(ctx, version) },
	)
}

// GetStats reports L2 items; hits from either tier count as hits.
func (hcs *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	s1, err1 := hcs.l1.GetStats(ctx)
	s2, err2 := hcs.l2.GetStats(ctx)
	switch {
	case err1 != nil && err2 != nil:
		return nil, errors.Join(err1, err2)
	case err1 != nil:
		return s2, nil
	case err2 != nil:
		return s1, nil
	}
	// an L1 miss that L2 served is one hit, not a miss and a hit
	hits := s1.TotalHits + s2.TotalHits
	misses := s2.TotalMiss
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: s2.TotalItems,
	}, nil
}

func (hcs *HybridCacheService) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := hcs.l1.Exists(ctx, key)
	if err != nil {
		hcs.logger.Warn("L1 exists failed, falling back to L2", zap.Error(err))
	} else if ok {
		return true, nil
	}
	return hcs.l2.Exists(ctx, key)
}

func (hcs *HybridCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return hcs.l1.GetTTL(ctx, key)
}

func (hcs *HybridCacheService) Close() error {
	return both(hcs.l1.Close, hcs.l2.Close)
}

// WarmUp preloads the L2 LRU when L2 supports it.
func (hcs *HybridCacheService) WarmUp(ctx context.Context, limit int) (int, error) {
	if w, ok := hcs.l2.(interface {
		WarmUp(context.Context, int) (int, error)
	}); ok {
		return w.WarmUp(ctx, limit)
	}
	return 0, nil
}

// both runs a and b concurrently and joins their errors.
func both(a, b func() error) error {
	errCh := make(chan error, 2)
	go func() { errCh <- a() }()
	go func() { errCh <- b() }()
	return errors.Join(<-errCh, <-errCh)
}

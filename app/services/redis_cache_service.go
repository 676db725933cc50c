package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanBatch = 500

// RedisCacheService stores results as JSON with a TTL. Each key is also
// recorded in a per-dictionary-version set so invalidation can find it.
type RedisCacheService struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCacheService connects to redisURL.
func NewRedisCacheService(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisCacheServiceWithClient(client, ttl, logger), nil
}

func NewRedisCacheServiceWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCacheService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCacheService{client: client, logger: logger, prefix: "addr_resolver:", ttl: ttl}
}

func (rcs *RedisCacheService) entryKey(key string) string       { return rcs.prefix + "r:" + key }
func (rcs *RedisCacheService) versionKey(version string) string { return rcs.prefix + "v:" + version }

func (rcs *RedisCacheService) Get(ctx context.Context, key string) (*models.ProcessingResult, bool, error) {
	val, err := rcs.client.Get(ctx, rcs.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		rcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		rcs.logger.Error("Redis get failed", zap.Error(err), zap.String("key", key))
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var result models.ProcessingResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	rcs.hits.Add(1)
	return &result, true, nil
}

func (rcs *RedisCacheService) Set(ctx context.Context, key string, result *models.ProcessingResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}
	_, err = rcs.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, rcs.entryKey(key), data, rcs.ttl)
		vk := rcs.versionKey(result.DictionaryVersion)
		p.SAdd(ctx, vk, key)
		p.Expire(ctx, vk, rcs.ttl)
		return nil
	})
	if err != nil {
		rcs.logger.Error("Redis set failed", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (rcs *RedisCacheService) Delete(ctx context.Context, key string) error {
	if err := rcs.client.Del(ctx, rcs.entryKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (rcs *RedisCacheService) Clear(ctx context.Context) error {
	n, err := rcs.deleteMatching(ctx, rcs.prefix+"*")
	if err != nil {
		return err
	}
	rcs.hits.Store(0)
	rcs.misses.Store(0)
	rcs.logger.Info("Redis cache cleared", zap.Int("keys_deleted", n))
	return nil
}

func (rcs *RedisCacheService) InvalidateByDictionaryVersion(ctx context.Context, version string) error {
	keep := rcs.versionKey(version)
	var sets []string
	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"v:*", scanBatch).Iterator()
	for iter.Next(ctx) {
		if iter.Val() != keep {
			sets = append(sets, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan version sets: %w", err)
	}

	deleted := 0
	for _, set := range sets {
		members, err := rcs.client.SMembers(ctx, set).Result()
		if err != nil {
			return fmt.Errorf("read version set %s: %w", set, err)
		}
		keys := make([]string, 0, len(members)+1)
		for _, m := range members {
			keys = append(keys, rcs.entryKey(m))
		}
		keys = append(keys, set)
		if err := rcs.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete stale entries: %w", err)
		}
		deleted += len(members)
	}
	rcs.logger.Info("Redis cache invalidated",
		zap.String("dictionary_version", version),
		zap.Int("deleted", deleted))
	return nil
}

func (rcs *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	var items int64
	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"r:*", scanBatch).Iterator()
	for iter.Next(ctx) {
		items++
	}
	if err := iter.Err(); err != nil {
		rcs.logger.Warn("Redis scan failed", zap.Error(err))
	}
	hits, misses := rcs.hits.Load(), rcs.misses.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: items,
	}, nil
}

func (rcs *RedisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rcs.client.Exists(ctx, rcs.entryKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (rcs *RedisCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := rcs.client.TTL(ctx, rcs.entryKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl: %w", err)
	}
	// negative values mean missing or persistent
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (rcs *RedisCacheService) Close() error {
	return rcs.client.Close()
}

func (rcs *RedisCacheService) deleteMatching(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	iter := rcs.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := rcs.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", strings.TrimSuffix(pattern, "*"), err)
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return deleted, flush()
}

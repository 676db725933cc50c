package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/address-resolver/app/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const cacheCollection = "address_cache"

// MongoCacheService is a persistent cache with an in-memory LRU in front.
type MongoCacheService struct {
	collection *mongo.Collection
	l1Cache    *lru.Cache[string, *models.ProcessingResult]
	logger     *zap.Logger

	l1Hits    atomic.Int64
	l1Miss    atomic.Int64
	mongoHits atomic.Int64
	mongoMiss atomic.Int64
}

func NewMongoCacheService(ctx context.Context, db *mongo.Database, l1Size int, logger *zap.Logger) (*MongoCacheService, error) {
	if l1Size <= 0 {
		l1Size = 10000
	}
	l1Cache, err := lru.New[string, *models.ProcessingResult](l1Size)
	if err != nil {
		return nil, fmt.Errorf("create l1 cache: %w", err)
	}

	collection := db.Collection(cacheCollection)
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "raw_fingerprint", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "dictionary_version", Value: 1}}},
		{Keys: bson.D{{Key: "access_count", Value: -1}}},
		{Keys: bson.D{{Key: "last_accessed", Value: 1}}},
	}
	ictx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateMany(ictx, indexModels); err != nil {
		logger.Warn("Could not create address_cache indexes", zap.Error(err))
	}

	return &MongoCacheService{collection: collection, l1Cache: l1Cache, logger: logger}, nil
}

// Get checks the LRU, then MongoDB, promoting Mongo hits into the LRU.
func (mcs *MongoCacheService) Get(ctx context.Context, key string) (*models.ProcessingResult, bool, error) {
	if result, found := mcs.l1Cache.Get(key); found {
		mcs.l1Hits.Add(1)
		return result, true, nil
	}
	mcs.l1Miss.Add(1)

	var entry models.AddressCache
	err := mcs.collection.FindOneAndUpdate(ctx,
		bson.M{"raw_fingerprint": key},
		bson.M{"$set": bson.M{"last_accessed": time.Now()}, "$inc": bson.M{"access_count": 1}},
	).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		mcs.mongoMiss.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query mongo cache: %w", err)
	}

	mcs.mongoHits.Add(1)
	result := entry.Result
	mcs.l1Cache.Add(key, &result)
	return &result, true, nil
}

func (mcs *MongoCacheService) Set(ctx context.Context, key string, result *models.ProcessingResult) error {
	mcs.l1Cache.Add(key, result)

	entry := models.NewAddressCache(key, result)
	_, err := mcs.collection.ReplaceOne(ctx,
		bson.M{"raw_fingerprint": key}, entry, options.Replace().SetUpsert(true))
	if err != nil {
		mcs.logger.Error("Mongo cache write failed", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("write mongo cache: %w", err)
	}
	return nil
}

func (mcs *MongoCacheService) Delete(ctx context.Context, key string) error {
	mcs.l1Cache.Remove(key)
	if _, err := mcs.collection.DeleteOne(ctx, bson.M{"raw_fingerprint": key}); err != nil {
		return fmt.Errorf("delete from mongo cache: %w", err)
	}
	return nil
}

func (mcs *MongoCacheService) Clear(ctx context.Context) error {
	mcs.l1Cache.Purge()
	if _, err := mcs.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear mongo cache: %w", err)
	}
	mcs.l1Hits.Store(0)
	mcs.l1Miss.Store(0)
	mcs.mongoHits.Store(0)
	mcs.mongoMiss.Store(0)
	return nil
}

func (mcs *MongoCacheService) InvalidateByDictionaryVersion(ctx context.Context, version string) error {
	mcs.l1Cache.Purge()
	res, err := mcs.collection.DeleteMany(ctx, bson.M{"dictionary_version": bson.M{"$ne": version}})
	if err != nil {
		return fmt.Errorf("invalidate mongo cache: %w", err)
	}
	mcs.logger.Info("Mongo cache invalidated",
		zap.String("dictionary_version", version),
		zap.Int64("deleted", res.DeletedCount))
	return nil
}

// GetStats counts a request as a hit when either tier served it.
func (mcs *MongoCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	count, err := mcs.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("count mongo cache: %w", err)
	}
	hits := mcs.l1Hits.Load() + mcs.mongoHits.Load()
	misses := mcs.mongoMiss.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: count,
	}, nil
}

func (mcs *MongoCacheService) Exists(ctx context.Context, key string) (bool, error) {
	if mcs.l1Cache.Contains(key) {
		return true, nil
	}
	n, err := mcs.collection.CountDocuments(ctx, bson.M{"raw_fingerprint": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check mongo cache: %w", err)
	}
	return n > 0, nil
}

// GetTTL is always 0: persisted entries live until invalidated.
func (mcs *MongoCacheService) GetTTL(context.Context, string) (time.Duration, error) {
	return 0, nil
}

// Close leaves the client to its owner.
func (mcs *MongoCacheService) Close() error { return nil }

// L1Stats breaks hits down per tier.
func (mcs *MongoCacheService) L1Stats() map[string]interface{} {
	return map[string]interface{}{
		"l1_size":    mcs.l1Cache.Len(),
		"l1_hits":    mcs.l1Hits.Load(),
		"l1_miss":    mcs.l1Miss.Load(),
		"mongo_hits": mcs.mongoHits.Load(),
		"mongo_miss": mcs.mongoMiss.Load(),
	}
}

// WarmUp loads the most accessed entries into the LRU.
func (mcs *MongoCacheService) WarmUp(ctx context.Context, limit int) (int, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "access_count", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := mcs.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return 0, fmt.Errorf("warm up cache: %w", err)
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		var entry models.AddressCache
		if err := cursor.Decode(&entry); err != nil {
			mcs.logger.Warn("Skipping undecodable cache entry", zap.Error(err))
			continue
		}
		result := entry.Result
		mcs.l1Cache.Add(entry.RawFingerprint, &result)
		count++
	}
	if err := cursor.Err(); err != nil {
		return count, fmt.Errorf("warm up cache: %w", err)
	}
	mcs.logger.Info("Cache warm up finished", zap.Int("loaded", count), zap.Int("l1_size", mcs.l1Cache.Len()))
	return count, nil
}

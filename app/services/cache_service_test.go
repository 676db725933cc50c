package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap/zaptest"
)

func result(raw, version string) *models.ProcessingResult {
	return &models.ProcessingResult{
		Raw:               raw,
		NormalizedText:    raw,
		Status:            models.StatusCompleted,
		Stage:             models.StageCompleted,
		OverallConfidence: 0.8,
		DictionaryVersion: version,
		StepTimingsMs:     map[string]float64{"total": 1.5},
	}
}

// exerciseCache runs the behaviour every ICacheService shares.
func exerciseCache(t *testing.T, c ICacheService) {
	t.Helper()
	ctx := context.Background()

	_, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k1", result("moda kadıköy", "v1")))
	require.NoError(t, c.Set(ctx, "k2", result("kızılay çankaya", "v2")))

	got, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "moda kadıköy", got.Raw)
	assert.Equal(t, 0.8, got.OverallConfidence)

	ok, err := c.Exists(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.InvalidateByDictionaryVersion(ctx, "v2"))
	ok, err = c.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "entry from another dictionary version survives")
	ok, err = c.Exists(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k2"))
	ok, err = c.Exists(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k3", result("nilüfer bursa", "v2")))
	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalItems)
	assert.GreaterOrEqual(t, stats.TotalHits, int64(1))

	require.NoError(t, c.Clear(ctx))
	stats, err = c.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalItems)
}

func newRedisCache(t *testing.T) (*RedisCacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheServiceWithClient(client, time.Hour, zaptest.NewLogger(t)), mr
}

func TestCacheService(t *testing.T) {
	exerciseCache(t, NewCacheService(100, time.Hour))
}

func TestCacheService_Expires(t *testing.T) {
	c := NewCacheService(10, 20*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", result("x", "v1")))

	assert.Eventually(t, func() bool {
		_, found, _ := c.Get(ctx, "k")
		return !found
	}, time.Second, 10*time.Millisecond)
}

func TestRedisCacheService(t *testing.T) {
	c, _ := newRedisCache(t)
	exerciseCache(t, c)
}

func TestRedisCacheService_TTL(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", result("x", "v1")))

	ttl, err := c.GetTTL(ctx, "k")
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 1)

	mr.FastForward(2 * time.Hour)
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHybridCacheService(t *testing.T) {
	l1, _ := newRedisCache(t)
	exerciseCache(t, NewHybridCacheService(l1, NewCacheService(100, time.Hour), zaptest.NewLogger(t)))
}

func TestHybridCacheService_PromotesL2Hits(t *testing.T) {
	l1 := NewCacheService(100, time.Hour)
	l2 := NewCacheService(100, time.Hour)
	h := NewHybridCacheService(l1, l2, zaptest.NewLogger(t))
	ctx := context.Background()
	require.NoError(t, l2.Set(ctx, "k", result("moda", "v1")))

	got, found, err := h.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "moda", got.Raw)

	assert.Eventually(t, func() bool {
		ok, _ := l1.Exists(ctx, "k")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestMongoCacheService(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("address_resolver_test")
	require.NoError(t, db.Collection(cacheCollection).Drop(ctx))
	c, err := NewMongoCacheService(ctx, db, 100, zaptest.NewLogger(t))
	require.NoError(t, err)

	exerciseCache(t, c)
}

func TestCacheKey(t *testing.T) {
	p := models.GeoPoint{Lat: 40.98, Lon: 29.02}

	a := CacheKey(models.RawInput{Text: " moda kadıköy "}, "v1")
	assert.Equal(t, a, CacheKey(models.RawInput{Text: "moda kadıköy"}, "v1"))
	assert.NotEqual(t, a, CacheKey(models.RawInput{Text: "moda kadıköy"}, "v2"))
	assert.NotEqual(t, a, CacheKey(models.RawInput{Text: "moda kadıköy", Coordinates: &p}, "v1"))
	assert.Len(t, a, 64)
}

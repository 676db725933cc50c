package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/pipeline"
	"github.com/address-resolver/internal/queue"
	"github.com/address-resolver/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var (
	assetsOnce sync.Once
	assets     pipeline.Assets
	assetsErr  error
)

func testPipeline(t *testing.T, st store.CandidateStore) *pipeline.Orchestrator {
	t.Helper()
	assetsOnce.Do(func() {
		assets, assetsErr = pipeline.LoadAssets(config.DataCfg{}, zap.NewNop())
	})
	require.NoError(t, assetsErr)
	return pipeline.Build(config.Default(), assets, pipeline.Options{Store: st}, zap.NewNop())
}

func TestAddressService_ResolveUsesCache(t *testing.T) {
	cache := NewCacheService(100, time.Hour)
	svc := NewAddressService(testPipeline(t, nil), cache, nil, zaptest.NewLogger(t))
	in := models.RawInput{Text: "istbl kadikoy moda mah caferaga sk 10"}

	first, cached := svc.Resolve(context.Background(), in, true)
	require.False(t, cached)
	assert.Equal(t, models.StatusCompleted, first.Status)

	second, cached := svc.Resolve(context.Background(), in, true)
	assert.True(t, cached)
	assert.Equal(t, first.NormalizedText, second.NormalizedText)

	_, cached = svc.Resolve(context.Background(), in, false)
	assert.False(t, cached)
	assert.EqualValues(t, 2, svc.Stats().Processed)
}

func TestAddressService_FailuresAreNotCached(t *testing.T) {
	cache := NewCacheService(100, time.Hour)
	svc := NewAddressService(testPipeline(t, nil), cache, nil, zaptest.NewLogger(t))

	res, _ := svc.Resolve(context.Background(), models.RawInput{Text: "ab"}, true)

	assert.True(t, res.Failed())
	stats, err := cache.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalItems)
	assert.EqualValues(t, 1, svc.Stats().Failed)
}

func TestAddressService_InProcessJob(t *testing.T) {
	svc := NewAddressService(testPipeline(t, nil), nil, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	job, err := svc.SubmitJob(ctx, []models.RawInput{
		{Text: "kızılay mahallesi çankaya ankara"},
		{Text: ""},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := svc.Job(ctx, job.ID)
		return err == nil && j.Done()
	}, 5*time.Second, 10*time.Millisecond)

	res, err := svc.JobResults(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	_, err = svc.Job(ctx, "missing")
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}

func TestAddressService_QueuedJob(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := queue.New(client, "test:jobs", time.Hour, zap.NewNop())
	svc := NewAddressService(testPipeline(t, nil), nil, q, zaptest.NewLogger(t))
	ctx := context.Background()

	job, err := svc.SubmitJob(ctx, []models.RawInput{{Text: "nilüfer bursa"}})
	require.NoError(t, err)
	assert.Equal(t, queue.JobQueued, job.Status)

	_, err = svc.JobResults(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFinished)

	// what the worker does
	claimed, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, claimed, svc.ResolveBatch(ctx, claimed.Inputs)))

	res, err := svc.JobResults(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
}

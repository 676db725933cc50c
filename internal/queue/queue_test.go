package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "resolver:jobs", time.Hour, zaptest.NewLogger(t)), mr
}

func TestQueue_Lifecycle(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, []models.RawInput{{Text: "moda mah kadıköy"}, {Text: "çankaya ankara"}})
	require.NoError(t, err)
	assert.Equal(t, JobQueued, job.Status)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, JobProcessing, got.Status)
	assert.Len(t, got.Inputs, 2)

	result := &models.BatchResult{Total: 2, Succeeded: 2}
	require.NoError(t, q.Complete(ctx, got, result))

	stored, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, stored.Done())
	assert.Equal(t, JobCompleted, stored.Status)
	assert.Equal(t, 2, stored.Result.Succeeded)
	assert.Empty(t, stored.Inputs)
}

func TestQueue_Fail(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, []models.RawInput{{Text: "x"}})
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, job, errors.New("pipeline unavailable")))

	stored, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, stored.Status)
	assert.Equal(t, "pipeline unavailable", stored.Error)
}

func TestQueue_Empty(t *testing.T) {
	q, _ := newQueue(t)

	_, err := q.Dequeue(context.Background(), 50*time.Millisecond)

	assert.ErrorIs(t, err, ErrNoJob)
}

func TestQueue_UnknownJob(t *testing.T) {
	q, _ := newQueue(t)

	_, err := q.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestQueue_JobsExpire(t *testing.T) {
	q, mr := newQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, []models.RawInput{{Text: "x"}})
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	_, err = q.Get(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

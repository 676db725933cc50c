package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/pipeline"
	"github.com/address-resolver/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrJobNotFinished = errors.New("job not finished")

// AddressService exposes the resolution pipeline with caching and batch
// jobs. Jobs go to the Redis queue when one is configured and run
// in-process otherwise.
type AddressService struct {
	pipeline  *pipeline.Orchestrator
	cache     ICacheService
	queue     *queue.Queue
	logger    *zap.Logger
	startTime time.Time
	jobTTL    time.Duration

	mu   sync.RWMutex
	jobs map[string]*queue.Job

	processed atomic.Int64
	failed    atomic.Int64
	totalUs   atomic.Int64
}

// NewAddressService builds the service. cache and q may be nil.
func NewAddressService(p *pipeline.Orchestrator, cache ICacheService, q *queue.Queue, logger *zap.Logger) *AddressService {
	return &AddressService{
		pipeline:  p,
		cache:     cache,
		queue:     q,
		logger:    logger,
		startTime: time.Now(),
		jobTTL:    time.Hour,
		jobs:      make(map[string]*queue.Job),
	}
}

// Resolve runs one address, serving completed results from the cache.
func (as *AddressService) Resolve(ctx context.Context, in models.RawInput, useCache bool) (*models.ProcessingResult, bool) {
	key := CacheKey(in, as.pipeline.DictionaryVersion())
	if useCache && as.cache != nil {
		res, found, err := as.cache.Get(ctx, key)
		if err != nil {
			as.logger.Warn("Cache read failed", zap.Error(err))
		} else if found {
			return res, true
		}
	}

	res := as.pipeline.Process(ctx, in)
	as.record(res)

	if useCache && as.cache != nil && !res.Failed() {
		if err := as.cache.Set(ctx, key, res); err != nil {
			as.logger.Warn("Cache write failed", zap.Error(err))
		}
	}
	return res, false
}

// DictionaryVersion identifies the correction assets in use.
func (as *AddressService) DictionaryVersion() string { return as.pipeline.DictionaryVersion() }

// ResolveBatch runs inputs synchronously.
func (as *AddressService) ResolveBatch(ctx context.Context, inputs []models.RawInput) *models.BatchResult {
	batch := as.pipeline.ProcessBatch(ctx, inputs)
	for _, r := range batch.Results {
		as.record(r)
	}
	return batch
}

// SubmitJob queues inputs for asynchronous processing.
func (as *AddressService) SubmitJob(ctx context.Context, inputs []models.RawInput) (*queue.Job, error) {
	if as.queue != nil {
		job, err := as.queue.Enqueue(ctx, inputs)
		if err != nil {
			return nil, fmt.Errorf("submit job: %w", err)
		}
		return job, nil
	}

	now := time.Now().UTC()
	job := &queue.Job{ID: uuid.NewString(), Status: queue.JobProcessing, CreatedAt: now, UpdatedAt: now}
	as.mu.Lock()
	as.jobs[job.ID] = job
	as.mu.Unlock()

	snapshot := *job
	go as.runJob(job.ID, inputs)
	return &snapshot, nil
}

func (as *AddressService) runJob(id string, inputs []models.RawInput) {
	ctx, cancel := context.WithTimeout(context.Background(), as.jobTTL)
	defer cancel()

	batch := as.ResolveBatch(ctx, inputs)

	as.mu.Lock()
	defer as.mu.Unlock()
	job := as.jobs[id]
	job.Result = batch
	job.Status = queue.JobCompleted
	if batch.Cancelled {
		job.Status = queue.JobFailed
		job.Error = "job deadline exceeded"
	}
	job.UpdatedAt = time.Now().UTC()
	as.logger.Info("Job finished",
		zap.String("job_id", id),
		zap.String("status", string(job.Status)),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed))
}

// Job returns a job's current state.
func (as *AddressService) Job(ctx context.Context, id string) (*queue.Job, error) {
	if as.queue != nil {
		return as.queue.Get(ctx, id)
	}
	as.mu.RLock()
	defer as.mu.RUnlock()
	job, ok := as.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", queue.ErrJobNotFound, id)
	}
	snapshot := *job
	return &snapshot, nil
}

// JobResults returns the batch result of a finished job.
func (as *AddressService) JobResults(ctx context.Context, id string) (*models.BatchResult, error) {
	job, err := as.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Done() {
		return nil, fmt.Errorf("%w: %s is %s", ErrJobNotFinished, id, job.Status)
	}
	if job.Result == nil {
		return nil, fmt.Errorf("job %s failed: %s", id, job.Error)
	}
	return job.Result, nil
}

func (as *AddressService) Compare(ctx context.Context, a, b models.RawInput) (models.SimilarityBreakdown, error) {
	return as.pipeline.Compare(ctx, a, b)
}

func (as *AddressService) Cluster(ctx context.Context, inputs []models.RawInput) ([][]int, error) {
	return as.pipeline.Cluster(ctx, inputs)
}

func (as *AddressService) Validate(c models.AddressComponents) models.ValidationResult {
	return as.pipeline.Validate(c)
}

func (as *AddressService) record(res *models.ProcessingResult) {
	as.processed.Add(1)
	if res.Failed() {
		as.failed.Add(1)
	}
	as.totalUs.Add(int64(res.StepTimingsMs[pipeline.StepTotal] * 1000))
}

// ProcessingStats summarises work done since start.
type ProcessingStats struct {
	Processed           int64   `json:"processed"`
	Failed              int64   `json:"failed"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
	Uptime              string  `json:"uptime"`
}

func (as *AddressService) Stats() ProcessingStats {
	n := as.processed.Load()
	avg := 0.0
	if n > 0 {
		avg = float64(as.totalUs.Load()) / float64(n) / 1000
	}
	return ProcessingStats{
		Processed:           n,
		Failed:              as.failed.Load(),
		AvgProcessingTimeMs: avg,
		Uptime:              time.Since(as.startTime).Round(time.Second).String(),
	}
}

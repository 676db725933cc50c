// Package queue hands batch jobs from the API to workers over a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrNoJob is returned by Dequeue when the wait elapses with an empty queue.
	ErrNoJob = errors.New("no job available")
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is a batch request plus its outcome once a worker finishes it.
type Job struct {
	ID        string              `json:"id"`
	Inputs    []models.RawInput   `json:"inputs"`
	Status    JobStatus           `json:"status"`
	Result    *models.BatchResult `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool { return j.Status == JobCompleted || j.Status == JobFailed }

// Queue stores job bodies under prefixed keys and job ids in a list.
type Queue struct {
	client *redis.Client
	name   string
	ttl    time.Duration
	logger *zap.Logger
}

func New(client *redis.Client, name string, ttl time.Duration, logger *zap.Logger) *Queue {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Queue{client: client, name: name, ttl: ttl, logger: logger}
}

// Connect parses redisURL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func (q *Queue) jobKey(id string) string { return q.name + ":job:" + id }

// Enqueue stores a new job and pushes its id onto the queue.
func (q *Queue) Enqueue(ctx context.Context, inputs []models.RawInput) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Inputs:    inputs,
		Status:    JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, q.jobKey(job.ID), data, q.ttl)
		p.RPush(ctx, q.name, job.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	q.logger.Info("Job enqueued", zap.String("job_id", job.ID), zap.Int("inputs", len(inputs)))
	return job, nil
}

// Dequeue blocks up to wait for the next job and marks it processing.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	res, err := q.client.BLPop(ctx, wait, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	// res is [list, value]
	job, err := q.Get(ctx, res[1])
	if err != nil {
		return nil, err
	}
	job.Status = JobProcessing
	if err := q.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get loads a job by id.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Complete stores the batch result.
func (q *Queue) Complete(ctx context.Context, job *Job, result *models.BatchResult) error {
	job.Status = JobCompleted
	job.Result = result
	// inputs are not needed once results exist
	job.Inputs = nil
	return q.save(ctx, job)
}

// Fail records cause on the job.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) error {
	job.Status = JobFailed
	job.Error = cause.Error()
	return q.save(ctx, job)
}

// Len returns the number of jobs waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

func (q *Queue) save(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.Set(ctx, q.jobKey(job.ID), data, q.ttl).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	q.logger.Debug("Job saved", zap.String("job_id", job.ID), zap.String("status", string(job.Status)))
	return nil
}

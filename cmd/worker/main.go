package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/helpers/utils"
	"github.com/address-resolver/internal/queue"
	"go.uber.org/zap"
)

// pollWait bounds each blocking dequeue so shutdown is noticed promptly.
const pollWait = 5 * time.Second

func main() {
	appCfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}

	logger, err := utils.NewLogger(appCfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := services.Bootstrap(ctx, appCfg, logger)
	if err != nil {
		logger.Fatal("Bootstrap failed", zap.Error(err))
	}
	defer rt.Close(context.Background())

	if rt.Queue == nil {
		logger.Fatal("Worker needs redis.url and queue.name")
	}

	logger.Info("Worker started", zap.String("queue", appCfg.QueueName))
	for {
		if err := work(ctx, rt, logger); err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("Job loop error", zap.Error(err))
			time.Sleep(time.Second)
		}
	}
	logger.Info("Worker exited")
}

// work claims and runs one job. A job interrupted by shutdown is marked
// failed with whatever finished.
func work(ctx context.Context, rt *services.Runtime, logger *zap.Logger) error {
	job, err := rt.Queue.Dequeue(ctx, pollWait)
	if errors.Is(err, queue.ErrNoJob) {
		return nil
	}
	if err != nil {
		return err
	}

	start := time.Now()
	logger.Info("Job claimed", zap.String("job_id", job.ID), zap.Int("addresses", len(job.Inputs)))
	batch := rt.Addresses.ResolveBatch(ctx, job.Inputs)

	// The job record must be written even after shutdown began.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if batch.Cancelled {
		job.Result = batch
		return rt.Queue.Fail(saveCtx, job, errors.New("worker shut down before the job finished"))
	}
	if err := rt.Queue.Complete(saveCtx, job, batch); err != nil {
		return err
	}
	logger.Info("Job completed",
		zap.String("job_id", job.ID),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/address-resolver/app/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProcessBatch resolves inputs with at most BatchConcurrency in flight. One
// address failing never aborts the rest. When ctx is cancelled, addresses
// not yet finished are counted as pending and the finished ones are kept.
func (o *Orchestrator) ProcessBatch(ctx context.Context, inputs []models.RawInput) *models.BatchResult {
	start := time.Now()
	out := make(chan *models.ProcessingResult, len(inputs))

	var g errgroup.Group
	g.SetLimit(o.cfg.BatchConcurrency)
	for i, in := range inputs {
		i, in := i, in
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out <- o.process(ctx, i, in)
			return nil
		})
	}
	_ = g.Wait()
	close(out)

	batch := &models.BatchResult{Total: len(inputs), Cancelled: ctx.Err() != nil}
	for res := range out {
		if res.Error != nil && res.Error.Kind == string(KindCancelled) {
			continue
		}
		batch.Results = append(batch.Results, res)
		if res.Failed() {
			batch.Failed++
		} else {
			batch.Succeeded++
		}
	}
	sort.Slice(batch.Results, func(i, j int) bool { return batch.Results[i].Index < batch.Results[j].Index })
	batch.Pending = batch.Total - len(batch.Results)

	elapsed := time.Since(start)
	batch.DurationMs = millis(elapsed)
	if secs := elapsed.Seconds(); secs > 0 {
		batch.Throughput = float64(len(batch.Results)) / secs
	}

	o.logger.Info("Batch processed",
		zap.Int("total", batch.Total),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
		zap.Int("pending", batch.Pending),
		zap.Bool("cancelled", batch.Cancelled),
		zap.Duration("elapsed", elapsed))
	return batch
}

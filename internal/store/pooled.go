package store

import (
	"context"
	"time"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Pooled bounds access to another store: at most MaxConcurrent calls in
// flight, a bounded wait for a slot, an optional request rate and a per-call
// timeout.
type Pooled struct {
	inner   CandidateStore
	slots   *semaphore.Weighted
	wait    time.Duration
	limiter *rate.Limiter
	timeout time.Duration
}

var _ CandidateStore = (*Pooled)(nil)

func NewPooled(inner CandidateStore, cfg config.StoreCfg) *Pooled {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	p := &Pooled{
		inner:   inner,
		slots:   semaphore.NewWeighted(maxConcurrent),
		wait:    cfg.AcquireWait,
		timeout: cfg.Timeout,
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return p
}

// do runs fn once a slot is free. A slot that does not free up within the
// acquire wait yields ErrPoolExhausted.
func (p *Pooled) do(ctx context.Context, fn func(context.Context) error) error {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if p.wait > 0 {
		actx, cancel = context.WithTimeout(ctx, p.wait)
	}
	err := p.slots.Acquire(actx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrPoolExhausted
	}
	defer p.slots.Release(1)

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	cctx, ccancel := ctx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		cctx, ccancel = context.WithTimeout(ctx, p.timeout)
	}
	defer ccancel()
	return fn(cctx)
}

func (p *Pooled) FindNearby(ctx context.Context, pt models.GeoPoint, radiusMeters float64, limit int) ([]models.AddressRecord, error) {
	var out []models.AddressRecord
	err := p.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.inner.FindNearby(ctx, pt, radiusMeters, limit)
		return err
	})
	return out, err
}

func (p *Pooled) FindByHierarchy(ctx context.Context, q HierarchyQuery, limit int) ([]models.AddressRecord, error) {
	var out []models.AddressRecord
	err := p.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.inner.FindByHierarchy(ctx, q, limit)
		return err
	})
	return out, err
}

func (p *Pooled) Insert(ctx context.Context, rec models.AddressRecord) (string, error) {
	var id string
	err := p.do(ctx, func(ctx context.Context) error {
		var err error
		id, err = p.inner.Insert(ctx, rec)
		return err
	})
	return id, err
}

// Unwrap returns the wrapped store.
func (p *Pooled) Unwrap() CandidateStore { return p.inner }

func (p *Pooled) Close(ctx context.Context) error { return p.inner.Close(ctx) }

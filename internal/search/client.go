// Package search keeps candidate records and reference units in
// Meilisearch.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/address-resolver/app/config"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// Client wraps a Meilisearch connection shared by the address and
// reference indexes.
type Client struct {
	sm     meilisearch.ServiceManager
	cfg    config.MeiliCfg
	logger *zap.Logger
}

// NewClient connects and checks server health.
func NewClient(cfg config.MeiliCfg, logger *zap.Logger) (*Client, error) {
	sm := meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))
	if _, err := sm.Health(); err != nil {
		return nil, fmt.Errorf("connect meilisearch: %w", err)
	}
	return &Client{sm: sm, cfg: cfg, logger: logger}, nil
}

// Ping reports whether the server is healthy.
func (c *Client) Ping(ctx context.Context) error {
	_, err := call(ctx, func() (*meilisearch.Health, error) { return c.sm.Health() })
	return err
}

// call runs fn but stops waiting once ctx is done. The client library has
// no per-request context, so an abandoned call finishes in the background.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// filterEq renders `field = "value"` clauses joined by AND, skipping empty values.
func filterEq(pairs ...string) string {
	var clauses []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = %q", pairs[i], pairs[i+1]))
	}
	return strings.Join(clauses, " AND ")
}

func geoRadiusFilter(lat, lon, meters float64) string {
	return fmt.Sprintf("_geoRadius(%.6f, %.6f, %d)", lat, lon, int64(meters))
}

func geoPointSort(lat, lon float64) string {
	return fmt.Sprintf("_geoPoint(%.6f, %.6f):asc", lat, lon)
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func num(m map[string]interface{}, key string) (float64, bool) {
	f, ok := m[key].(float64)
	return f, ok
}

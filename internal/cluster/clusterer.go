// Package cluster groups addresses that refer to the same place.
package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/normalizer"
	"github.com/address-resolver/internal/similarity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PairScorer is the part of similarity.Scorer the clusterer needs.
type PairScorer interface {
	Score(ctx context.Context, a, b similarity.Address) models.SimilarityBreakdown
}

type edge struct{ a, b int }

// DuplicateClusterer links pairs scoring at or above the threshold and
// returns the connected components. Linking is transitive: A~B and B~C put
// A, B and C together whatever A~C scored. Config.Strict splits each
// component into cliques afterwards.
type DuplicateClusterer struct {
	scorer PairScorer
	cfg    config.ClusterCfg
	logger *zap.Logger
}

func NewDuplicateClusterer(scorer PairScorer, cfg config.ClusterCfg, logger *zap.Logger) *DuplicateClusterer {
	return &DuplicateClusterer{scorer: scorer, cfg: cfg, logger: logger}
}

// Cluster returns groups of input indices, each of size two or more,
// members ascending and groups ordered by their first member.
func (dc *DuplicateClusterer) Cluster(ctx context.Context, addrs []similarity.Address) ([][]int, error) {
	if len(addrs) < 2 {
		return nil, nil
	}
	edges, compared, err := dc.edges(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("score pairs: %w", err)
	}

	uf := newUnionFind(len(addrs))
	for _, e := range edges {
		uf.union(e.a, e.b)
	}
	groups := uf.groups()
	if dc.cfg.Strict {
		groups = cliques(groups, edges)
	}

	dc.logger.Debug("Clustered addresses",
		zap.Int("addresses", len(addrs)),
		zap.Int("pairs_scored", compared),
		zap.Int("edges", len(edges)),
		zap.Int("groups", len(groups)))
	return groups, nil
}

// edges scores every pair, or only pairs sharing a province when blocking
// is on. Rows run concurrently; each row writes only its own slot.
func (dc *DuplicateClusterer) edges(ctx context.Context, addrs []similarity.Address) ([]edge, int, error) {
	blocks := make([]string, len(addrs))
	if dc.cfg.Blocking {
		for i, a := range addrs {
			blocks[i] = normalizer.Key(a.Components.Province.Value)
		}
	}

	rows := make([][]edge, len(addrs))
	counts := make([]int, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	if dc.cfg.Concurrency > 0 {
		g.SetLimit(dc.cfg.Concurrency)
	}
	for i := range addrs {
		i := i
		g.Go(func() error {
			for j := i + 1; j < len(addrs); j++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if blocks[i] != "" && blocks[j] != "" && blocks[i] != blocks[j] {
					continue
				}
				counts[i]++
				if dc.scorer.Score(gctx, addrs[i], addrs[j]).Overall >= dc.cfg.Threshold {
					rows[i] = append(rows[i], edge{i, j})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var out []edge
	total := 0
	for i := range rows {
		out = append(out, rows[i]...)
		total += counts[i]
	}
	return out, total, nil
}

// cliques greedily splits each group so every pair inside a part is an
// edge. Parts of size one are dropped.
func cliques(groups [][]int, edges []edge) [][]int {
	linked := make(map[edge]bool, len(edges))
	for _, e := range edges {
		linked[e] = true
	}
	connected := func(a, b int) bool {
		if a > b {
			a, b = b, a
		}
		return linked[edge{a, b}]
	}

	var out [][]int
	for _, g := range groups {
		var parts [][]int
		for _, m := range g {
			placed := false
			for pi, p := range parts {
				all := true
				for _, other := range p {
					if !connected(m, other) {
						all = false
						break
					}
				}
				if all {
					parts[pi] = append(parts[pi], m)
					placed = true
					break
				}
			}
			if !placed {
				parts = append(parts, []int{m})
			}
		}
		for _, p := range parts {
			if len(p) > 1 {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

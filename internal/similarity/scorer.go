// Package similarity compares two addresses on semantic, geographic,
// textual and hierarchical signals.
package similarity

import (
	"context"
	"errors"
	"math"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/reference"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const embeddingCacheSize = 4096

// ErrEmbedderUnavailable is returned by an Embedder with no backing model.
var ErrEmbedderUnavailable = errors.New("embedder unavailable")

// Embedder turns normalized text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Available() bool
}

// Address is one side of a comparison. Text should already be normalized.
type Address struct {
	Text        string
	Components  models.AddressComponents
	Coordinates *models.GeoPoint
	Patterns    []string
}

// Scorer is stateless apart from an embedding cache and safe for concurrent use.
type Scorer struct {
	cfg      config.SimilarityCfg
	index    reference.Hierarchy
	embedder Embedder
	vectors  *lru.Cache[string, []float32]
	logger   *zap.Logger
}

// NewScorer builds a scorer. index and embedder may be nil; the geographic
// signal then relies on coordinates only and the semantic signal on token
// overlap.
func NewScorer(cfg config.SimilarityCfg, index reference.Hierarchy, embedder Embedder, logger *zap.Logger) *Scorer {
	s := &Scorer{cfg: cfg, index: index, embedder: embedder, logger: logger}
	if embedder != nil {
		s.vectors, _ = lru.New[string, []float32](embeddingCacheSize)
	}
	return s
}

// Threshold is the overall score at which two addresses match.
func (s *Scorer) Threshold() float64 { return s.cfg.MatchThreshold }

// Score compares a and b. The result does not depend on argument order.
func (s *Scorer) Score(ctx context.Context, a, b Address) models.SimilarityBreakdown {
	var bd models.SimilarityBreakdown
	bd.Semantic, bd.Method.Semantic = s.semantic(ctx, a, b)
	bd.Geographic, bd.Method.Geographic = s.geographic(a, b)
	bd.Textual = s.textual(a, b)
	bd.Hierarchical = s.hierarchical(a.Components, b.Components)

	w := s.cfg.Weights
	bd.Overall = clamp01(w.Semantic*bd.Semantic + w.Geographic*bd.Geographic +
		w.Textual*bd.Textual + w.Hierarchical*bd.Hierarchical)
	bd.IsMatch = bd.Overall >= s.cfg.MatchThreshold
	return bd
}

func (s *Scorer) semantic(ctx context.Context, a, b Address) (float64, string) {
	score, method := 0.0, models.SemanticTokenOverlap
	if va, vb, ok := s.vectorsFor(ctx, a.Text, b.Text); ok {
		score, method = math.Max(0, cosine(va, vb)), models.SemanticEmbedding
	} else {
		score = jaccard(tokenSet(a.Text), tokenSet(b.Text))
	}
	return clamp01(score + s.locationBonus(a.Components, b.Components)), method
}

// locationBonus rewards agreeing province and district names, which
// embeddings tend to under-weight.
func (s *Scorer) locationBonus(a, b models.AddressComponents) float64 {
	bonus := 0.0
	for _, kind := range []models.ComponentKind{models.KindProvince, models.KindDistrict} {
		fa, fb := a.Get(kind), b.Get(kind)
		if fa.Present() && fb.Present() && key(fa.Value) == key(fb.Value) {
			bonus += s.cfg.LocationBonusCap / 2
		}
	}
	return math.Min(bonus, s.cfg.LocationBonusCap)
}

func (s *Scorer) vectorsFor(ctx context.Context, a, b string) ([]float32, []float32, bool) {
	if s.embedder == nil || !s.embedder.Available() {
		return nil, nil, false
	}
	va, err := s.embed(ctx, a)
	if err != nil {
		return nil, nil, false
	}
	vb, err := s.embed(ctx, b)
	if err != nil {
		return nil, nil, false
	}
	return va, vb, len(va) == len(vb) && len(va) > 0
}

func (s *Scorer) embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors.Get(text); ok {
		return v, nil
	}
	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, ErrEmbedderUnavailable) {
			s.logger.Warn("Embedding failed, using token overlap", zap.Error(err))
		}
		return nil, err
	}
	s.vectors.Add(text, v)
	return v, nil
}

// geographic decays exponentially with distance. Missing coordinates fall
// back to reference centroids, then to a neutral value.
func (s *Scorer) geographic(a, b Address) (float64, string) {
	if a.Coordinates != nil && b.Coordinates != nil {
		return s.decay(a.Coordinates.DistanceMeters(*b.Coordinates)), models.GeographicCoordinates
	}
	pa, okA := s.locate(a)
	pb, okB := s.locate(b)
	if okA && okB {
		return s.decay(pa.DistanceMeters(pb)), models.GeographicCentroid
	}
	return s.cfg.NeutralGeographic, models.GeographicNeutral
}

func (s *Scorer) locate(a Address) (models.GeoPoint, bool) {
	if a.Coordinates != nil {
		return *a.Coordinates, true
	}
	if s.index == nil {
		return models.GeoPoint{}, false
	}
	c := a.Components
	return s.index.Centroid(c.Province.Value, c.District.Value, c.Neighborhood.Value)
}

func (s *Scorer) decay(meters float64) float64 {
	halfLife := s.cfg.GeoHalfLifeKm * 1000
	if halfLife <= 0 {
		return 0
	}
	return math.Pow(0.5, meters/halfLife)
}

func (s *Scorer) textual(a, b Address) float64 {
	score := textSimilarity(a.Text, b.Text)
	if len(a.Patterns) > 0 && samePatterns(a.Patterns, b.Patterns) {
		score += s.cfg.PatternBonus
	}
	return clamp01(score)
}

func (s *Scorer) hierarchical(a, b models.AddressComponents) float64 {
	hw := s.cfg.HierarchyWeights
	weights := []struct {
		kind models.ComponentKind
		w    float64
	}{
		{models.KindProvince, hw.Province},
		{models.KindDistrict, hw.District},
		{models.KindNeighborhood, hw.Neighborhood},
		{models.KindStreet, hw.Street},
		{models.KindBuildingNumber, hw.BuildingNumber},
		{models.KindApartmentNumber, hw.ApartmentNumber},
	}
	var score, total float64
	for _, kw := range weights {
		total += kw.w
		fa, fb := a.Get(kw.kind), b.Get(kw.kind)
		if !fa.Present() || !fb.Present() {
			score += kw.w * s.cfg.MissingComponentScore
			continue
		}
		score += kw.w * componentAgreement(kw.kind, fa.Value, fb.Value)
	}
	if total == 0 {
		return 0
	}
	return score / total
}

func samePatterns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, p := range a {
		set[p] = true
	}
	for _, p := range b {
		if !set[p] {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

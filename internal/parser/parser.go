package parser

import (
	"context"
	"errors"
	"strings"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/normalizer"
	"github.com/address-resolver/internal/reference"
	"go.uber.org/zap"
)

// unavailablePenalty scales the overall confidence when only the rule-based
// path could run.
const unavailablePenalty = 0.9

// kindWeights give each component's share of the overall parse confidence.
var kindWeights = map[models.ComponentKind]float64{
	models.KindProvince:        0.25,
	models.KindDistrict:        0.20,
	models.KindNeighborhood:    0.20,
	models.KindStreet:          0.10,
	models.KindBuildingNumber:  0.10,
	models.KindApartmentNumber: 0.05,
	models.KindPostalCode:      0.10,
}

// Result is the outcome of parsing one normalized address.
type Result struct {
	Components models.AddressComponents `json:"components"`
	Confidence float64                  `json:"confidence"`
	Method     string                   `json:"method"`
	Conflicts  []models.Conflict        `json:"conflicts,omitempty"`
}

// ComponentParser extracts structured components from normalized text,
// combining rule families with an optional statistical extractor and then
// completing the hierarchy from the reference index.
type ComponentParser struct {
	index     reference.Hierarchy
	extractor EntityExtractor
	completer completer
	logger    *zap.Logger
}

// NewComponentParser builds a parser. extractor may be nil.
func NewComponentParser(index reference.Hierarchy, extractor EntityExtractor, logger *zap.Logger) *ComponentParser {
	return &ComponentParser{
		index:     index,
		extractor: extractor,
		completer: completer{index: index},
		logger:    logger,
	}
}

// Parse never fails: text with nothing recognizable yields an empty result
// with method "failed".
func (cp *ComponentParser) Parse(ctx context.Context, text string) Result {
	text = normalizer.FoldCase(strings.TrimSpace(text))
	if text == "" {
		return Result{Method: models.ParseFailed}
	}

	rules := cp.extractRules(text)
	stat, statAvailable := cp.extractStatistical(ctx, text)

	components, fromRules, fromStat := combine(rules, stat)
	method := methodFor(fromRules, fromStat)
	if method == models.ParseFailed {
		cp.logger.Debug("No components recognized", zap.String("text", text))
		return Result{Method: method}
	}

	cp.completer.complete(&components)

	confidence := 0.0
	for kind, w := range kindWeights {
		if f := components.Get(kind); f.Present() {
			confidence += w * f.Confidence
		}
	}
	if !statAvailable {
		confidence *= unavailablePenalty
	}

	cp.logger.Debug("Parsed address",
		zap.String("text", text),
		zap.String("method", method),
		zap.Int("components", len(components.PresentKinds())),
		zap.Int("conflicts", len(components.Conflicts)),
		zap.Float64("confidence", confidence))

	return Result{
		Components: components,
		Confidence: clamp01(confidence),
		Method:     method,
		Conflicts:  components.Conflicts,
	}
}

// StatisticalAvailable reports whether the statistical path can run.
func (cp *ComponentParser) StatisticalAvailable() bool {
	return cp.extractor != nil && cp.extractor.Available()
}

func (cp *ComponentParser) extractRules(text string) map[models.ComponentKind]models.Field {
	s := newScan(text, cp.index)
	for _, f := range families {
		if _, done := s.found[f.kind]; done {
			continue
		}
		if f.extract(s) {
			cp.logger.Debug("Rule matched", zap.String("family", f.name), zap.String("value", s.found[f.kind].value))
		}
	}
	out := make(map[models.ComponentKind]models.Field, len(s.found))
	for kind, c := range s.found {
		out[kind] = models.Field{
			Value:      cp.canonical(kind, c.value, s.found),
			Confidence: baseConfidence[kind],
			Source:     models.SourceRule,
		}
	}
	return out
}

func (cp *ComponentParser) extractStatistical(ctx context.Context, text string) (map[models.ComponentKind]models.Field, bool) {
	if !cp.StatisticalAvailable() {
		return nil, false
	}
	entities, err := cp.extractor.Extract(ctx, text)
	if err != nil {
		if !errors.Is(err, ErrExtractorUnavailable) {
			cp.logger.Warn("Statistical extraction failed", zap.Error(err))
		}
		return nil, false
	}
	best := make(map[models.ComponentKind]Entity)
	for _, e := range entities {
		if e.Value == "" {
			continue
		}
		if prev, ok := best[e.Kind]; ok && prev.Confidence >= e.Confidence {
			continue
		}
		best[e.Kind] = e
	}
	// the winning value of each kind is the context for resolving the others
	found := make(map[models.ComponentKind]candidate, len(best))
	for kind, e := range best {
		found[kind] = candidate{value: normalizer.FoldCase(e.Value)}
	}
	out := make(map[models.ComponentKind]models.Field, len(best))
	for kind, e := range best {
		out[kind] = models.Field{
			Value:      cp.canonical(kind, found[kind].value, found),
			Confidence: clamp01(e.Confidence),
			Source:     models.SourceStatistical,
		}
	}
	return out, true
}

// canonical maps an extracted name onto the reference spelling when the
// index resolves it; other values are title-cased or kept verbatim.
func (cp *ComponentParser) canonical(kind models.ComponentKind, value string, found map[models.ComponentKind]candidate) string {
	switch kind {
	case models.KindProvince:
		if p, ok := cp.index.ResolveProvince(value, reference.Flexible); ok {
			return p.Name
		}
	case models.KindDistrict:
		var p *reference.Province
		if c, ok := found[models.KindProvince]; ok {
			p, _ = cp.index.ResolveProvince(c.value, reference.Flexible)
		}
		if ds := cp.index.ResolveDistricts(p, value, reference.Flexible); len(ds) > 0 {
			return ds[0].Name
		}
		if ds := cp.index.ResolveDistricts(nil, value, reference.Flexible); len(ds) > 0 {
			return ds[0].Name
		}
	case models.KindNeighborhood:
		if ns := cp.index.NeighborhoodsNamed(value, reference.Flexible); len(ns) > 0 {
			return ns[0].Name
		}
	case models.KindBuildingNumber, models.KindApartmentNumber, models.KindPostalCode:
		return strings.ToUpper(value)
	}
	return normalizer.TitleCase(value)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

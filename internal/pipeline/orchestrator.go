// Package pipeline runs one address, or a batch of them, through
// normalization, parsing, validation, candidate lookup and scoring.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/cluster"
	"github.com/address-resolver/internal/normalizer"
	"github.com/address-resolver/internal/parser"
	"github.com/address-resolver/internal/similarity"
	"github.com/address-resolver/internal/store"
	"github.com/address-resolver/internal/validator"
	"go.uber.org/zap"
)

// Step timing keys.
const (
	StepNormalize = "normalize"
	StepParse     = "parse"
	StepValidate  = "validate"
	StepFetch     = "fetch_candidates"
	StepScore     = "score"
	StepAggregate = "aggregate"
	StepTotal     = "total"
)

// Components are the engine parts an Orchestrator sequences. Store and
// Clusterer may be nil.
type Components struct {
	Normalizer *normalizer.TextNormalizer
	Parser     *parser.ComponentParser
	Validator  *validator.HierarchyValidator
	Scorer     *similarity.Scorer
	Clusterer  *cluster.DuplicateClusterer
	Store      store.CandidateStore
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cfg    config.PipelineCfg
	parts  Components
	logger *zap.Logger
}

func New(cfg config.PipelineCfg, parts Components, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, parts: parts, logger: logger}
}

// DictionaryVersion identifies the correction assets results were built with.
func (o *Orchestrator) DictionaryVersion() string { return o.parts.Normalizer.Version() }

// Store returns the candidate store, nil when none is configured.
func (o *Orchestrator) Store() store.CandidateStore { return o.parts.Store }

// Process resolves a single address. It never returns nil; failures are
// recorded on the result with whatever stages completed.
func (o *Orchestrator) Process(ctx context.Context, in models.RawInput) *models.ProcessingResult {
	return o.process(ctx, 0, in)
}

func (o *Orchestrator) process(ctx context.Context, index int, in models.RawInput) (res *models.ProcessingResult) {
	start := time.Now()
	res = &models.ProcessingResult{
		Index:             index,
		Raw:               in.Text,
		Stage:             models.StageReceived,
		StepTimingsMs:     make(map[string]float64),
		DictionaryVersion: o.parts.Normalizer.Version(),
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Pipeline panic", zap.Int("index", index), zap.Any("panic", r), zap.String("stage", string(res.Stage)))
			o.fail(res, &Error{Kind: KindInternal, Stage: res.Stage, Err: fmt.Errorf("panic: %v", r)})
		}
		res.StepTimingsMs[StepTotal] = millis(time.Since(start))
	}()

	if err := o.checkInput(in); err != nil {
		o.fail(res, err)
		return res
	}

	// Step 1: normalize
	var norm models.NormalizedAddress
	o.timed(res, StepNormalize, func() { norm = o.parts.Normalizer.Normalize(in.Text) })
	if norm.Empty {
		o.fail(res, &Error{Kind: KindInvalidInput, Stage: models.StageReceived, Err: ErrEmptyInput})
		return res
	}
	res.NormalizedText = norm.Text
	res.Corrections = norm.Corrections
	res.Stage = models.StageNormalized

	// Step 2: parse
	var parsed parser.Result
	o.timed(res, StepParse, func() { parsed = o.parts.Parser.Parse(ctx, norm.Text) })
	res.Components = parsed.Components
	res.Components.Coordinates = in.Coordinates
	res.ParseMethod = parsed.Method
	if !o.parts.Parser.StatisticalAvailable() {
		res.Warnings = append(res.Warnings, warning(KindCapabilityUnavailable, "statistical extraction unavailable, rule-based parse only"))
	}
	res.Stage = models.StageParsed

	// Step 3: validate
	var verdict models.ValidationResult
	o.timed(res, StepValidate, func() { verdict = o.parts.Validator.Validate(res.Components) })
	res.Validation = &verdict
	if len(verdict.Issues) > 0 {
		res.Warnings = append(res.Warnings, warning(KindDataInconsistency, fmt.Sprintf("%d validation issue(s)", len(verdict.Issues))))
	}
	res.Stage = models.StageValidated

	if err := o.cancelled(ctx, res.Stage); err != nil {
		o.fail(res, err)
		return res
	}

	// Step 4: candidates
	var records []models.AddressRecord
	var fetchErr error
	o.timed(res, StepFetch, func() { records, fetchErr = o.fetchCandidates(ctx, res.Components) })
	if fetchErr != nil {
		if err := o.cancelled(ctx, res.Stage); err != nil {
			o.fail(res, err)
			return res
		}
		o.logger.Warn("Candidate fetch failed, continuing without candidates", zap.Int("index", index), zap.Error(fetchErr))
		res.Warnings = append(res.Warnings, warning(KindStoreFailure, fetchErr.Error()))
		records = nil
	}
	res.Stage = models.StageCandidatesFetched

	// Step 5: score
	query := similarity.Address{
		Text:        norm.Text,
		Components:  res.Components,
		Coordinates: in.Coordinates,
		Patterns:    norm.Patterns,
	}
	o.timed(res, StepScore, func() { res.Candidates = o.scoreCandidates(ctx, query, records) })
	res.Stage = models.StageScored

	// Step 6: aggregate
	o.timed(res, StepAggregate, func() {
		best := 0.0
		if c, ok := res.BestCandidate(); ok {
			best = c.Breakdown.Overall
		}
		res.OverallConfidence = aggregate(o.cfg.Aggregation, verdict.Confidence, parsed.Confidence, norm.Confidence, best)
	})
	res.Stage = models.StageConfidenceAggregated

	res.Stage = models.StageCompleted
	res.Status = models.StatusCompleted
	o.logger.Debug("Address resolved",
		zap.Int("index", index),
		zap.String("normalized", res.NormalizedText),
		zap.String("method", res.ParseMethod),
		zap.Int("candidates", len(res.Candidates)),
		zap.Float64("confidence", res.OverallConfidence))
	return res
}

func (o *Orchestrator) checkInput(in models.RawInput) error {
	text := strings.TrimSpace(in.Text)
	switch {
	case text == "":
		return &Error{Kind: KindInvalidInput, Stage: models.StageReceived, Err: ErrEmptyInput}
	case utf8.RuneCountInString(text) < o.cfg.MinInputRunes:
		return &Error{Kind: KindInvalidInput, Stage: models.StageReceived,
			Err: fmt.Errorf("%w: %d characters, need %d", ErrInputTooShort, utf8.RuneCountInString(text), o.cfg.MinInputRunes)}
	case !utf8.ValidString(text):
		return &Error{Kind: KindInvalidInput, Stage: models.StageReceived, Err: errors.New("address text is not valid UTF-8")}
	case in.Coordinates != nil && !in.Coordinates.Valid():
		return &Error{Kind: KindInvalidInput, Stage: models.StageReceived, Err: ErrBadCoordinate}
	}
	return nil
}

func (o *Orchestrator) cancelled(ctx context.Context, stage models.Stage) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindCancelled, Stage: stage, Err: err}
	}
	return nil
}

func (o *Orchestrator) fail(res *models.ProcessingResult, err error) {
	var pe *Error
	if !errors.As(err, &pe) {
		pe = &Error{Kind: KindInternal, Stage: res.Stage, Err: err}
	}
	res.Status = models.StatusError
	res.Error = pe.result()
	res.Stage = models.StageError
	res.OverallConfidence = 0
}

// fetchCandidates queries by radius when coordinates are known and tops up
// by hierarchy, de-duplicating by record id.
func (o *Orchestrator) fetchCandidates(ctx context.Context, c models.AddressComponents) ([]models.AddressRecord, error) {
	if o.parts.Store == nil {
		return nil, nil
	}
	if o.cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.StoreTimeout)
		defer cancel()
	}

	limit := o.cfg.CandidateLimit
	seen := make(map[string]bool)
	var out []models.AddressRecord
	add := func(recs []models.AddressRecord) {
		for _, r := range recs {
			if len(out) >= limit {
				return
			}
			if r.ID == "" || seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}

	if c.Coordinates != nil {
		recs, err := o.parts.Store.FindNearby(ctx, *c.Coordinates, o.cfg.RadiusMeters, limit)
		if err != nil {
			return nil, fmt.Errorf("radius query: %w", err)
		}
		add(recs)
	}
	if len(out) < limit {
		if q := store.QueryFor(c); !q.Empty() {
			recs, err := o.parts.Store.FindByHierarchy(ctx, q, limit)
			if err != nil {
				if len(out) > 0 {
					o.logger.Warn("Hierarchy top-up failed", zap.Error(err))
					return out, nil
				}
				return nil, fmt.Errorf("hierarchy query: %w", err)
			}
			add(recs)
		}
	}
	return out, nil
}

func (o *Orchestrator) scoreCandidates(ctx context.Context, query similarity.Address, records []models.AddressRecord) []models.CandidateMatch {
	if len(records) == 0 {
		return nil
	}
	matches := make([]models.CandidateMatch, 0, len(records))
	for _, rec := range records {
		matches = append(matches, models.CandidateMatch{
			ID:             rec.ID,
			Text:           rec.RawText,
			Breakdown:      o.parts.Scorer.Score(ctx, query, o.candidateAddress(rec)),
			DistanceMeters: rec.DistanceMeters,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Breakdown.Overall != matches[j].Breakdown.Overall {
			return matches[i].Breakdown.Overall > matches[j].Breakdown.Overall
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > o.cfg.TopK {
		matches = matches[:o.cfg.TopK]
	}
	return matches
}

func (o *Orchestrator) candidateAddress(rec models.AddressRecord) similarity.Address {
	norm := o.parts.Normalizer.Normalize(rec.Text())
	return similarity.Address{
		Text:        norm.Text,
		Components:  models.ComponentsFromMap(rec.Components, rec.Confidence, rec.Coordinates),
		Coordinates: rec.Coordinates,
		Patterns:    norm.Patterns,
	}
}

func (o *Orchestrator) timed(res *models.ProcessingResult, step string, fn func()) {
	start := time.Now()
	fn()
	res.StepTimingsMs[step] = millis(time.Since(start))
}

func aggregate(w config.AggregationWeights, validation, parsing, correction, best float64) float64 {
	v := w.Validation*validation + w.Parsing*parsing + w.Correction*correction + w.BestCandidate*best
	return math.Max(0, math.Min(1, v))
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

package pipeline

import (
	"context"
	"errors"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/similarity"
)

// ErrNoClusterer is returned by Cluster when the orchestrator was built
// without a clusterer.
var ErrNoClusterer = errors.New("duplicate clustering not configured")

// Analyze normalizes and parses text without validation or candidate lookup.
func (o *Orchestrator) Analyze(ctx context.Context, text string, coords *models.GeoPoint) (similarity.Address, error) {
	in := models.RawInput{Text: text, Coordinates: coords}
	if err := o.checkInput(in); err != nil {
		return similarity.Address{}, err
	}
	norm := o.parts.Normalizer.Normalize(text)
	if norm.Empty {
		return similarity.Address{}, &Error{Kind: KindInvalidInput, Stage: models.StageReceived, Err: ErrEmptyInput}
	}
	parsed := o.parts.Parser.Parse(ctx, norm.Text)
	parsed.Components.Coordinates = coords
	return similarity.Address{
		Text:        norm.Text,
		Components:  parsed.Components,
		Coordinates: coords,
		Patterns:    norm.Patterns,
	}, nil
}

// Compare scores two raw addresses against each other.
func (o *Orchestrator) Compare(ctx context.Context, a, b models.RawInput) (models.SimilarityBreakdown, error) {
	left, err := o.Analyze(ctx, a.Text, a.Coordinates)
	if err != nil {
		return models.SimilarityBreakdown{}, err
	}
	right, err := o.Analyze(ctx, b.Text, b.Coordinates)
	if err != nil {
		return models.SimilarityBreakdown{}, err
	}
	return o.parts.Scorer.Score(ctx, left, right), nil
}

// Cluster groups duplicate addresses. Inputs that cannot be analyzed take
// part as bare text and rarely match anything.
func (o *Orchestrator) Cluster(ctx context.Context, inputs []models.RawInput) ([][]int, error) {
	if o.parts.Clusterer == nil {
		return nil, ErrNoClusterer
	}
	addrs := make([]similarity.Address, len(inputs))
	for i, in := range inputs {
		a, err := o.Analyze(ctx, in.Text, in.Coordinates)
		if err != nil {
			a = similarity.Address{Text: in.Text, Coordinates: in.Coordinates}
		}
		addrs[i] = a
	}
	return o.parts.Clusterer.Cluster(ctx, addrs)
}

// Validate checks already structured components.
func (o *Orchestrator) Validate(c models.AddressComponents) models.ValidationResult {
	return o.parts.Validator.Validate(c)
}

package parser

import (
	"context"
	"errors"

	"github.com/address-resolver/app/models"
)

// ErrExtractorUnavailable is returned by an EntityExtractor whose backing
// model is not loaded.
var ErrExtractorUnavailable = errors.New("entity extractor unavailable")

// Entity is one labelled span from a statistical extractor.
type Entity struct {
	Kind       models.ComponentKind
	Value      string
	Confidence float64
}

// EntityExtractor is the statistical half of the parser. Implementations
// must be safe for concurrent use.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]Entity, error)
	Available() bool
}

// StaticExtractor returns fixed entities. Useful in tests and for feeding
// pre-labelled data through the pipeline.
type StaticExtractor struct {
	Entities []Entity
	Err      error
}

func (s StaticExtractor) Extract(context.Context, string) ([]Entity, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Entities, nil
}

func (s StaticExtractor) Available() bool { return !errors.Is(s.Err, ErrExtractorUnavailable) }

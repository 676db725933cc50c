//go:build !cgo

package external

import (
	"context"

	"github.com/address-resolver/internal/parser"
	"go.uber.org/zap"
)

// Libpostal is unavailable without cgo; the parser falls back to rules.
type Libpostal struct{}

var _ parser.EntityExtractor = (*Libpostal)(nil)

func NewLibpostal(logger *zap.Logger) *Libpostal {
	logger.Warn("libpostal requires cgo; statistical extraction disabled")
	return &Libpostal{}
}

func (*Libpostal) Available() bool { return false }

func (*Libpostal) Extract(context.Context, string) ([]parser.Entity, error) {
	return nil, parser.ErrExtractorUnavailable
}

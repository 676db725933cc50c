//go:build cgo

package external

import (
	"context"
	"fmt"

	"github.com/address-resolver/internal/parser"
	"github.com/openvenues/gopostal/expand"
	postal "github.com/openvenues/gopostal/parser"
	"go.uber.org/zap"
)

// Libpostal extracts entities with the libpostal CRF parser. The expansion
// step only picks the text handed to the parser; values come from the
// parser output.
type Libpostal struct {
	logger *zap.Logger
}

var _ parser.EntityExtractor = (*Libpostal)(nil)

func NewLibpostal(logger *zap.Logger) *Libpostal {
	return &Libpostal{logger: logger}
}

func (l *Libpostal) Available() bool { return true }

func (l *Libpostal) Extract(ctx context.Context, text string) (ents []parser.Entity, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libpostal parse: %v", r)
		}
	}()

	opts := expand.GetDefaultExpansionOptions()
	opts.Languages = []string{"tr"}
	best := text
	if exps := expand.ExpandAddressOptions(text, opts); len(exps) > 0 {
		best = exps[0]
	}

	popts := postal.ParserOptions{Language: "tr", Country: "tr"}
	var comps []labelled
	for _, c := range postal.ParseAddressOptions(best, popts) {
		comps = append(comps, labelled{Label: c.Label, Value: c.Value})
	}
	ents = entitiesFrom(comps, best)
	l.logger.Debug("libpostal entities", zap.String("text", best), zap.Int("count", len(ents)))
	return ents, nil
}

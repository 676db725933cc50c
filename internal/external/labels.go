// Package external adapts optional outside capabilities (libpostal, an
// embedding endpoint) to the resolver's extractor and embedder interfaces.
package external

import (
	"strings"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/parser"
)

// libpostalConfidence is the base confidence of a libpostal label before
// scaling by token coverage.
const libpostalConfidence = 0.75

var labelKinds = map[string]models.ComponentKind{
	"state":          models.KindProvince,
	"state_district": models.KindDistrict,
	"city":           models.KindDistrict,
	"city_district":  models.KindDistrict,
	"suburb":         models.KindNeighborhood,
	"road":           models.KindStreet,
	"house_number":   models.KindBuildingNumber,
	"unit":           models.KindApartmentNumber,
	"postcode":       models.KindPostalCode,
}

type labelled struct {
	Label, Value string
}

// entitiesFrom maps parser labels to entities. Confidence drops with the
// share of input tokens the labels failed to cover; the first label wins
// when two map to the same kind.
func entitiesFrom(comps []labelled, text string) []parser.Entity {
	total := len(strings.Fields(text))
	covered := 0
	for _, c := range comps {
		covered += len(strings.Fields(c.Value))
	}
	coverage := 1.0
	if total > 0 && covered < total {
		coverage = float64(covered) / float64(total)
	}

	seen := make(map[models.ComponentKind]bool)
	var out []parser.Entity
	for _, c := range comps {
		kind, ok := labelKinds[c.Label]
		if !ok || seen[kind] || strings.TrimSpace(c.Value) == "" {
			continue
		}
		seen[kind] = true
		out = append(out, parser.Entity{
			Kind:       kind,
			Value:      strings.TrimSpace(c.Value),
			Confidence: libpostalConfidence * (0.5 + 0.5*coverage),
		})
	}
	return out
}

// Package store holds the candidate address records the pipeline scores
// against.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/normalizer"
)

// ErrPoolExhausted is returned when no connection slot frees up within the
// configured wait.
var ErrPoolExhausted = errors.New("candidate store pool exhausted")

// HierarchyQuery selects records by any subset of the administrative levels.
// Empty fields match everything.
type HierarchyQuery struct {
	Province     string `json:"province,omitempty"`
	District     string `json:"district,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// Empty reports whether no level is set.
func (q HierarchyQuery) Empty() bool {
	return q.Province == "" && q.District == "" && q.Neighborhood == ""
}

// QueryFor builds a hierarchy query from parsed components.
func QueryFor(c models.AddressComponents) HierarchyQuery {
	return HierarchyQuery{
		Province:     c.Province.Value,
		District:     c.District.Value,
		Neighborhood: c.Neighborhood.Value,
	}
}

// CandidateStore is implemented by every backend: memory, MongoDB,
// PostgreSQL, SQLite and Meilisearch.
type CandidateStore interface {
	// FindNearby returns records within radius meters of p, nearest first,
	// with DistanceMeters set.
	FindNearby(ctx context.Context, p models.GeoPoint, radiusMeters float64, limit int) ([]models.AddressRecord, error)
	// FindByHierarchy returns matching records ranked by stored confidence.
	FindByHierarchy(ctx context.Context, q HierarchyQuery, limit int) ([]models.AddressRecord, error)
	// Insert validates and stores rec and returns its generated id.
	Insert(ctx context.Context, rec models.AddressRecord) (string, error)
	Close(ctx context.Context) error
}

// hierarchyKeys folds record components for matching.
type hierarchyKeys struct {
	province, district, neighborhood string
}

func keysOf(components map[string]string) hierarchyKeys {
	return hierarchyKeys{
		province:     normalizer.Key(components[string(models.KindProvince)]),
		district:     normalizer.Key(components[string(models.KindDistrict)]),
		neighborhood: normalizer.Key(components[string(models.KindNeighborhood)]),
	}
}

func keysOfQuery(q HierarchyQuery) hierarchyKeys {
	return hierarchyKeys{
		province:     normalizer.Key(q.Province),
		district:     normalizer.Key(q.District),
		neighborhood: normalizer.Key(q.Neighborhood),
	}
}

func (k hierarchyKeys) matches(q hierarchyKeys) bool {
	return (q.province == "" || q.province == k.province) &&
		(q.district == "" || q.district == k.district) &&
		(q.neighborhood == "" || q.neighborhood == k.neighborhood)
}

// rankByConfidence orders records by confidence, then id for stable output.
func rankByConfidence(recs []models.AddressRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		return recs[i].ID < recs[j].ID
	})
}

// nearestFirst keeps records within radius of p, sorted by distance.
func nearestFirst(recs []models.AddressRecord, p models.GeoPoint, radius float64, limit int) []models.AddressRecord {
	var out []models.AddressRecord
	for _, r := range recs {
		if r.Coordinates == nil {
			continue
		}
		d := p.DistanceMeters(*r.Coordinates)
		if d > radius {
			continue
		}
		r.DistanceMeters = &d
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceMeters < *out[j].DistanceMeters })
	return truncate(out, limit)
}

func truncate(recs []models.AddressRecord, limit int) []models.AddressRecord {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

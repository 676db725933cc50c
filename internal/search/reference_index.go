package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/normalizer"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const seedBatchSize = 1000

// ReferenceIndex mirrors the reference dataset into Meilisearch for typo
// tolerant lookups of place names.
type ReferenceIndex struct {
	client *Client
	name   string
}

func NewReferenceIndex(client *Client) *ReferenceIndex {
	return &ReferenceIndex{client: client, name: client.cfg.ReferenceIndex}
}

func (ri *ReferenceIndex) EnsureSettings() error {
	task, err := ri.client.sm.Index(ri.name).UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"neighborhood_name", "aliases", "district_name", "province_name", "ascii_path"},
		FilterableAttributes: []string{"province_code", "district_code", "postal_code"},
		SortableAttributes:   []string{"province_code", "district_code"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		StopWords:            []string{"mahallesi", "ilçesi", "ili"},
	})
	if err != nil {
		return fmt.Errorf("configure reference index: %w", err)
	}
	ri.client.logger.Info("Configured reference index", zap.String("index", ri.name), zap.Int64("task_uid", task.TaskUID))
	return nil
}

// Seed uploads units in batches, keyed by neighborhood code.
func (ri *ReferenceIndex) Seed(ctx context.Context, units []models.ReferenceUnit) (int, error) {
	if len(units) == 0 {
		return 0, errors.New("no reference units to seed")
	}
	docs := make([]map[string]interface{}, 0, len(units))
	for _, u := range units {
		docs = append(docs, referenceDocument(u))
	}

	index := ri.client.sm.Index(ri.name)
	for i := 0; i < len(docs); i += seedBatchSize {
		end := min(i+seedBatchSize, len(docs))
		batch := docs[i:end]
		task, err := call(ctx, func() (*meilisearch.TaskInfo, error) {
			return index.AddDocuments(batch, "id")
		})
		if err != nil {
			return i, fmt.Errorf("add reference batch %d-%d: %w", i, end, err)
		}
		ri.client.logger.Info("Queued reference batch",
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}
	return len(docs), nil
}

// Search returns units whose names approximately match query.
func (ri *ReferenceIndex) Search(ctx context.Context, query string, limit int) ([]models.ReferenceUnit, error) {
	if query == "" {
		return nil, errors.New("empty reference query")
	}
	res, err := call(ctx, func() (*meilisearch.SearchResponse, error) {
		return ri.client.sm.Index(ri.name).Search(query, &meilisearch.SearchRequest{Limit: int64(limit)})
	})
	if err != nil {
		return nil, fmt.Errorf("reference search: %w", err)
	}
	return unitsFromHits(res.Hits), nil
}

func referenceDocument(u models.ReferenceUnit) map[string]interface{} {
	doc := map[string]interface{}{
		"id":                u.NeighborhoodCode,
		"province_code":     u.ProvinceCode,
		"province_name":     u.ProvinceName,
		"district_code":     u.DistrictCode,
		"district_name":     u.DistrictName,
		"neighborhood_code": u.NeighborhoodCode,
		"neighborhood_name": u.NeighborhoodName,
		"postal_code":       u.PostalCode,
		"aliases":           u.Aliases,
		"ascii_path":        normalizer.ASCIIFold(u.Path()),
	}
	if p, ok := u.Centroid(); ok {
		doc["_geo"] = map[string]float64{"lat": p.Lat, "lng": p.Lon}
	}
	return doc
}

func unitsFromHits(hits []interface{}) []models.ReferenceUnit {
	out := make([]models.ReferenceUnit, 0, len(hits))
	for _, hit := range hits {
		m, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		u := models.ReferenceUnit{
			ProvinceCode:     str(m, "province_code"),
			ProvinceName:     str(m, "province_name"),
			DistrictCode:     str(m, "district_code"),
			DistrictName:     str(m, "district_name"),
			NeighborhoodCode: str(m, "neighborhood_code"),
			NeighborhoodName: str(m, "neighborhood_name"),
			PostalCode:       str(m, "postal_code"),
		}
		if aliases, ok := m["aliases"].([]interface{}); ok {
			for _, a := range aliases {
				if s, ok := a.(string); ok {
					u.Aliases = append(u.Aliases, s)
				}
			}
		}
		if geo, ok := m["_geo"].(map[string]interface{}); ok {
			if lat, ok := num(geo, "lat"); ok {
				u.Latitude = &lat
			}
			if lng, ok := num(geo, "lng"); ok {
				u.Longitude = &lng
			}
		}
		out = append(out, u)
	}
	return out
}

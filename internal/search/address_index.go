package search

import (
	"context"
	"fmt"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/normalizer"
	"github.com/address-resolver/internal/store"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// AddressIndex is a CandidateStore backed by a Meilisearch index. Radius
// queries use the _geo field; hierarchy queries filter on folded keys.
type AddressIndex struct {
	client *Client
	name   string
}

var _ store.CandidateStore = (*AddressIndex)(nil)

func NewAddressIndex(client *Client) *AddressIndex {
	return &AddressIndex{client: client, name: client.cfg.AddressIndex}
}

// EnsureSettings configures filterable and sortable attributes and the
// Turkish abbreviation synonyms.
func (ai *AddressIndex) EnsureSettings() error {
	index := ai.client.sm.Index(ai.name)
	task, err := index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"normalized_text", "raw_text", "neighborhood", "district", "province"},
		FilterableAttributes: []string{"_geo", "province_key", "district_key", "neighborhood_key", "status"},
		SortableAttributes:   []string{"_geo", "confidence", "created_at"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		Synonyms: map[string][]string{
			"mah": {"mahallesi"},
			"sk":  {"sokak"},
			"cd":  {"caddesi"},
			"blv": {"bulvarı"},
		},
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  4,
				TwoTypos: 8,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("configure address index: %w", err)
	}
	ai.client.logger.Info("Configured address index", zap.String("index", ai.name), zap.Int64("task_uid", task.TaskUID))
	return nil
}

func (ai *AddressIndex) FindNearby(ctx context.Context, p models.GeoPoint, radiusMeters float64, limit int) ([]models.AddressRecord, error) {
	req := &meilisearch.SearchRequest{
		Filter: geoRadiusFilter(p.Lat, p.Lon, radiusMeters),
		Sort:   []string{geoPointSort(p.Lat, p.Lon)},
		Limit:  int64(limit),
	}
	res, err := call(ctx, func() (*meilisearch.SearchResponse, error) {
		return ai.client.sm.Index(ai.name).Search("", req)
	})
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}
	return recordsFromHits(res.Hits), nil
}

func (ai *AddressIndex) FindByHierarchy(ctx context.Context, q store.HierarchyQuery, limit int) ([]models.AddressRecord, error) {
	req := &meilisearch.SearchRequest{
		Sort:  []string{"confidence:desc"},
		Limit: int64(limit),
	}
	if f := filterEq(
		"province_key", normalizer.Key(q.Province),
		"district_key", normalizer.Key(q.District),
		"neighborhood_key", normalizer.Key(q.Neighborhood),
	); f != "" {
		req.Filter = f
	}
	res, err := call(ctx, func() (*meilisearch.SearchResponse, error) {
		return ai.client.sm.Index(ai.name).Search("", req)
	})
	if err != nil {
		return nil, fmt.Errorf("hierarchy search: %w", err)
	}
	return recordsFromHits(res.Hits), nil
}

func (ai *AddressIndex) Insert(ctx context.Context, rec models.AddressRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()

	docs := []map[string]interface{}{recordDocument(rec)}
	task, err := call(ctx, func() (*meilisearch.TaskInfo, error) {
		return ai.client.sm.Index(ai.name).AddDocuments(docs, "id")
	})
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	ai.client.logger.Debug("Queued address document", zap.String("id", rec.ID), zap.Int64("task_uid", task.TaskUID))
	return rec.ID, nil
}

func (ai *AddressIndex) Close(context.Context) error { return nil }

func recordDocument(rec models.AddressRecord) map[string]interface{} {
	doc := map[string]interface{}{
		"id":               rec.ID,
		"raw_text":         rec.RawText,
		"normalized_text":  rec.NormalizedText,
		"components":       rec.Components,
		"province":         rec.Components[string(models.KindProvince)],
		"district":         rec.Components[string(models.KindDistrict)],
		"neighborhood":     rec.Components[string(models.KindNeighborhood)],
		"province_key":     normalizer.Key(rec.Components[string(models.KindProvince)]),
		"district_key":     normalizer.Key(rec.Components[string(models.KindDistrict)]),
		"neighborhood_key": normalizer.Key(rec.Components[string(models.KindNeighborhood)]),
		"confidence":       rec.Confidence,
		"status":           string(rec.Status),
		"created_at":       rec.CreatedAt.Unix(),
	}
	if rec.Coordinates != nil {
		doc["_geo"] = map[string]float64{"lat": rec.Coordinates.Lat, "lng": rec.Coordinates.Lon}
	}
	return doc
}

func recordsFromHits(hits []interface{}) []models.AddressRecord {
	out := make([]models.AddressRecord, 0, len(hits))
	for _, hit := range hits {
		m, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		rec := models.AddressRecord{
			ID:             str(m, "id"),
			RawText:        str(m, "raw_text"),
			NormalizedText: str(m, "normalized_text"),
			Status:         models.RecordStatus(str(m, "status")),
		}
		rec.Confidence, _ = num(m, "confidence")
		if ts, ok := num(m, "created_at"); ok {
			rec.CreatedAt = time.Unix(int64(ts), 0).UTC()
		}
		if comps, ok := m["components"].(map[string]interface{}); ok {
			rec.Components = make(map[string]string, len(comps))
			for k, v := range comps {
				if s, ok := v.(string); ok && s != "" {
					rec.Components[k] = s
				}
			}
		}
		if geo, ok := m["_geo"].(map[string]interface{}); ok {
			lat, okLat := num(geo, "lat")
			lng, okLng := num(geo, "lng")
			if okLat && okLng {
				rec.Coordinates = &models.GeoPoint{Lat: lat, Lon: lng}
			}
		}
		if d, ok := num(m, "_geoDistance"); ok {
			rec.DistanceMeters = &d
		}
		out = append(out, rec)
	}
	return out
}

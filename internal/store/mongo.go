package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// geoJSONPoint is the GeoJSON form a 2dsphere index expects: [lon, lat].
type geoJSONPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type mongoKeys struct {
	Province     string `bson:"province,omitempty"`
	District     string `bson:"district,omitempty"`
	Neighborhood string `bson:"neighborhood,omitempty"`
}

type mongoRecord struct {
	models.AddressRecord `bson:",inline"`
	Keys                 mongoKeys     `bson:"keys"`
	Location             *geoJSONPoint `bson:"location,omitempty"`
}

type mongoNearRecord struct {
	mongoRecord `bson:",inline"`
	Distance    float64 `bson:"distance"`
}

func (r mongoRecord) record() models.AddressRecord {
	rec := r.AddressRecord
	if r.Location != nil && len(r.Location.Coordinates) == 2 {
		rec.Coordinates = &models.GeoPoint{Lat: r.Location.Coordinates[1], Lon: r.Location.Coordinates[0]}
	}
	return rec
}

// MongoStore keeps records in a MongoDB collection with a 2dsphere index on
// location and folded hierarchy keys for exact lookups.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ CandidateStore = (*MongoStore)(nil)

// NewMongoStore connects with the configured pool bounds and ensures indexes.
func NewMongoStore(ctx context.Context, cfg config.MongoCfg, logger *zap.Logger) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxPoolSize(cfg.MaxPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	ms := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}
	if err := ms.EnsureIndexes(ctx); err != nil {
		logger.Warn("Could not create candidate indexes", zap.Error(err))
	}
	logger.Info("Connected candidate store",
		zap.String("driver", "mongo"),
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))
	return ms, nil
}

func (ms *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{
			{Key: "keys.province", Value: 1},
			{Key: "keys.district", Value: 1},
			{Key: "keys.neighborhood", Value: 1},
		}},
		{Keys: bson.D{{Key: "confidence", Value: -1}}},
	}
	_, err := ms.collection.Indexes().CreateMany(ctx, indexModels)
	return err
}

func (ms *MongoStore) FindNearby(ctx context.Context, p models.GeoPoint, radiusMeters float64, limit int) ([]models.AddressRecord, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: bson.A{p.Lon, p.Lat}},
			}},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: radiusMeters},
			{Key: "spherical", Value: true},
		}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cursor, err := ms.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("geo query: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoNearRecord
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode geo results: %w", err)
	}
	out := make([]models.AddressRecord, 0, len(docs))
	for _, d := range docs {
		rec := d.record()
		dist := d.Distance
		rec.DistanceMeters = &dist
		out = append(out, rec)
	}
	return out, nil
}

func (ms *MongoStore) FindByHierarchy(ctx context.Context, q HierarchyQuery, limit int) ([]models.AddressRecord, error) {
	k := keysOfQuery(q)
	filter := bson.M{}
	if k.province != "" {
		filter["keys.province"] = k.province
	}
	if k.district != "" {
		filter["keys.district"] = k.district
	}
	if k.neighborhood != "" {
		filter["keys.neighborhood"] = k.neighborhood
	}

	opts := options.Find().SetSort(bson.D{{Key: "confidence", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := ms.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("hierarchy query: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoRecord
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode hierarchy results: %w", err)
	}
	out := make([]models.AddressRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

func (ms *MongoStore) Insert(ctx context.Context, rec models.AddressRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()

	k := keysOf(rec.Components)
	doc := mongoRecord{
		AddressRecord: rec,
		Keys:          mongoKeys{Province: k.province, District: k.district, Neighborhood: k.neighborhood},
	}
	if rec.Coordinates != nil {
		doc.Location = &geoJSONPoint{Type: "Point", Coordinates: []float64{rec.Coordinates.Lon, rec.Coordinates.Lat}}
	}
	if _, err := ms.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return rec.ID, nil
}

// Count returns the number of stored records.
func (ms *MongoStore) Count(ctx context.Context) (int64, error) {
	return ms.collection.CountDocuments(ctx, bson.M{})
}

func (ms *MongoStore) Close(ctx context.Context) error {
	if err := ms.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

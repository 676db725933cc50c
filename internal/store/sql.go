package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Dialect captures the differences between the SQL backends.
type Dialect struct {
	Driver string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	Postgres = Dialect{Driver: "postgres", Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	SQLite   = Dialect{Driver: "sqlite3", Placeholder: func(int) string { return "?" }}
)

const schema = `CREATE TABLE IF NOT EXISTS address_records (
	id               TEXT PRIMARY KEY,
	raw_text         TEXT NOT NULL,
	normalized_text  TEXT NOT NULL DEFAULT '',
	components       TEXT NOT NULL DEFAULT '{}',
	province_key     TEXT NOT NULL DEFAULT '',
	district_key     TEXT NOT NULL DEFAULT '',
	neighborhood_key TEXT NOT NULL DEFAULT '',
	lat              DOUBLE PRECISION,
	lon              DOUBLE PRECISION,
	confidence       DOUBLE PRECISION NOT NULL,
	status           TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL
)`

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_address_records_hierarchy ON address_records (province_key, district_key, neighborhood_key)`,
	`CREATE INDEX IF NOT EXISTS idx_address_records_location ON address_records (lat, lon)`,
}

const selectColumns = `id, raw_text, normalized_text, components, lat, lon, confidence, status, created_at`

// SQLStore keeps records in PostgreSQL or SQLite. Radius queries prefilter
// on a bounding box and compute the exact distance in Go.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

var _ CandidateStore = (*SQLStore)(nil)

// OpenSQL opens the database, applies pool limits and creates the schema.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string, maxOpen int, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Driver, err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen / 2)
	}

	s := NewSQLStore(db, dialect, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Connected candidate store", zap.String("driver", dialect.Driver))
	return s, nil
}

// NewSQLStore wraps an open handle. The schema must already exist.
func NewSQLStore(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, logger: logger}
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range append([]string{schema}, schemaIndexes...) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) FindNearby(ctx context.Context, p models.GeoPoint, radiusMeters float64, limit int) ([]models.AddressRecord, error) {
	box := models.BoxAround(p, radiusMeters)
	ph := s.dialect.Placeholder
	query := fmt.Sprintf(`SELECT %s FROM address_records
		WHERE lat BETWEEN %s AND %s AND lon BETWEEN %s AND %s`,
		selectColumns, ph(1), ph(2), ph(3), ph(4))

	recs, err := s.query(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("geo query: %w", err)
	}
	return nearestFirst(recs, p, radiusMeters, limit), nil
}

func (s *SQLStore) FindByHierarchy(ctx context.Context, q HierarchyQuery, limit int) ([]models.AddressRecord, error) {
	k := keysOfQuery(q)
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = %s", column, s.dialect.Placeholder(len(args))))
	}
	add("province_key", k.province)
	add("district_key", k.district)
	add("neighborhood_key", k.neighborhood)

	query := "SELECT " + selectColumns + " FROM address_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY confidence DESC, id"
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT " + s.dialect.Placeholder(len(args))
	}

	recs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("hierarchy query: %w", err)
	}
	return recs, nil
}

func (s *SQLStore) Insert(ctx context.Context, rec models.AddressRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()

	components, err := json.Marshal(orEmpty(rec.Components))
	if err != nil {
		return "", fmt.Errorf("encode components: %w", err)
	}
	var lat, lon sql.NullFloat64
	if rec.Coordinates != nil {
		lat = sql.NullFloat64{Float64: rec.Coordinates.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: rec.Coordinates.Lon, Valid: true}
	}
	k := keysOf(rec.Components)

	ph := make([]string, 12)
	for i := range ph {
		ph[i] = s.dialect.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf(`INSERT INTO address_records
		(id, raw_text, normalized_text, components, province_key, district_key, neighborhood_key, lat, lon, confidence, status, created_at)
		VALUES (%s)`, strings.Join(ph, ", "))

	_, err = s.db.ExecContext(ctx, stmt,
		rec.ID, rec.RawText, rec.NormalizedText, string(components),
		k.province, k.district, k.neighborhood,
		lat, lon, rec.Confidence, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return rec.ID, nil
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]models.AddressRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AddressRecord
	for rows.Next() {
		var (
			rec        models.AddressRecord
			components string
			status     string
			lat, lon   sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.RawText, &rec.NormalizedText, &components,
			&lat, &lon, &rec.Confidence, &status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(components), &rec.Components); err != nil {
			return nil, fmt.Errorf("decode components of %s: %w", rec.ID, err)
		}
		if lat.Valid && lon.Valid {
			rec.Coordinates = &models.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
		}
		rec.Status = models.RecordStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close(context.Context) error {
	return s.db.Close()
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

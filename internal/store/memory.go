package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/google/uuid"
)

// MemoryStore keeps records in process. It backs tests and the CLI when no
// database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.AddressRecord
	now     func() time.Time
}

var _ CandidateStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) FindNearby(ctx context.Context, p models.GeoPoint, radiusMeters float64, limit int) ([]models.AddressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return nearestFirst(m.records, p, radiusMeters, limit), nil
}

func (m *MemoryStore) FindByHierarchy(ctx context.Context, q HierarchyQuery, limit int) ([]models.AddressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := keysOfQuery(q)
	m.mu.RLock()
	var out []models.AddressRecord
	for _, r := range m.records {
		if keysOf(r.Components).matches(want) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()
	rankByConfidence(out)
	return truncate(out, limit), nil
}

func (m *MemoryStore) Insert(ctx context.Context, rec models.AddressRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = m.now().UTC()
	rec.DistanceMeters = nil

	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return rec.ID, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Close(context.Context) error { return nil }

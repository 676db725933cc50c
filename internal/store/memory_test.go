package store

import (
	"context"
	"testing"

	"github.com/address-resolver/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []models.AddressRecord {
	moda := models.GeoPoint{Lat: 40.9833, Lon: 29.0264}
	caferaga := models.GeoPoint{Lat: 40.9873, Lon: 29.0271}
	kizilay := models.GeoPoint{Lat: 39.9208, Lon: 32.8541}
	return []models.AddressRecord{
		{
			RawText:     "Moda Mahallesi Caferağa Sokak No 10 Kadıköy İstanbul",
			Components:  map[string]string{"province": "İstanbul", "district": "Kadıköy", "neighborhood": "Moda"},
			Coordinates: &moda, Confidence: 0.9, Status: models.RecordValid,
		},
		{
			RawText:     "Caferağa Mahallesi Moda Caddesi No 3 Kadıköy İstanbul",
			Components:  map[string]string{"province": "İstanbul", "district": "Kadıköy", "neighborhood": "Caferağa"},
			Coordinates: &caferaga, Confidence: 0.95, Status: models.RecordValid,
		},
		{
			RawText:     "Kızılay Mahallesi Atatürk Bulvarı No 5 Çankaya Ankara",
			Components:  map[string]string{"province": "Ankara", "district": "Çankaya", "neighborhood": "Kızılay"},
			Coordinates: &kizilay, Confidence: 0.8,
		},
		{
			RawText:    "Kadıköy İstanbul",
			Components: map[string]string{"province": "istanbul", "district": "kadikoy"},
			Confidence: 0.5, Status: models.RecordNeedsReview,
		},
	}
}

// exerciseStore runs the shared behaviour checks against any backend.
func exerciseStore(t *testing.T, s CandidateStore) {
	t.Helper()
	ctx := context.Background()

	ids := map[string]bool{}
	for _, r := range sampleRecords() {
		id, err := s.Insert(ctx, r)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids[id] = true
	}
	assert.Len(t, ids, 4, "ids are unique")

	t.Run("radius", func(t *testing.T) {
		near, err := s.FindNearby(ctx, models.GeoPoint{Lat: 40.9840, Lon: 29.0265}, 2000, 10)
		require.NoError(t, err)
		require.Len(t, near, 2)
		assert.Contains(t, near[0].RawText, "Moda Mahallesi")
		require.NotNil(t, near[0].DistanceMeters)
		assert.LessOrEqual(t, *near[0].DistanceMeters, *near[1].DistanceMeters)
		require.NotNil(t, near[0].Coordinates)
	})

	t.Run("radius limit", func(t *testing.T) {
		near, err := s.FindNearby(ctx, models.GeoPoint{Lat: 40.9840, Lon: 29.0265}, 2000, 1)
		require.NoError(t, err)
		assert.Len(t, near, 1)
	})

	t.Run("hierarchy ranked by confidence", func(t *testing.T) {
		recs, err := s.FindByHierarchy(ctx, HierarchyQuery{Province: "İSTANBUL", District: "Kadıköy"}, 10)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, 0.95, recs[0].Confidence)
		assert.Equal(t, 0.9, recs[1].Confidence)
		assert.Equal(t, 0.5, recs[2].Confidence)
		assert.Equal(t, "Kadıköy", recs[0].Components["district"])
	})

	t.Run("hierarchy by neighborhood only", func(t *testing.T) {
		recs, err := s.FindByHierarchy(ctx, HierarchyQuery{Neighborhood: "kizilay"}, 10)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, models.RecordNeedsReview, recs[0].Status, "empty status defaults")
	})

	t.Run("rejects invalid records", func(t *testing.T) {
		_, err := s.Insert(ctx, models.AddressRecord{RawText: " "})
		assert.ErrorIs(t, err, models.ErrInvalidRecord)
		_, err = s.Insert(ctx, models.AddressRecord{RawText: "x", Confidence: 1.5})
		assert.ErrorIs(t, err, models.ErrInvalidRecord)
		_, err = s.Insert(ctx, models.AddressRecord{RawText: "x", Status: "archived"})
		assert.ErrorIs(t, err, models.ErrInvalidRecord)
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	assert.Equal(t, 4, s.Len())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()

	_, err := s.FindByHierarchy(ctx, HierarchyQuery{}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHierarchyQuery(t *testing.T) {
	assert.True(t, HierarchyQuery{}.Empty())

	var c models.AddressComponents
	c.District = models.Field{Value: "Kadıköy"}
	q := QueryFor(c)
	assert.False(t, q.Empty())
	assert.Equal(t, "Kadıköy", q.District)
}

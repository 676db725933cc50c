package similarity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func (f *fakeEmbedder) Available() bool { return true }

func newTestScorer(t *testing.T, embedder Embedder) *Scorer {
	t.Helper()
	ix, err := reference.Load("", zap.NewNop())
	require.NoError(t, err)
	return NewScorer(config.Default().Similarity, ix, embedder, zaptest.NewLogger(t))
}

func address(text, province, district, neighborhood, street, building string) Address {
	var c models.AddressComponents
	c.Province = models.Field{Value: province}
	c.District = models.Field{Value: district}
	c.Neighborhood = models.Field{Value: neighborhood}
	c.Street = models.Field{Value: street}
	c.BuildingNumber = models.Field{Value: building}
	return Address{Text: text, Components: c}
}

var (
	modaA = address("istanbul kadıköy moda mahallesi caferağa sokak no 10",
		"İstanbul", "Kadıköy", "Moda", "Caferağa Sokak", "10")
	modaB = address("kadıköy moda caferağa sokak 12",
		"İstanbul", "Kadıköy", "Moda", "Caferağa Sokak", "12")
	kizilay = address("ankara çankaya kızılay mahallesi atatürk bulvarı no 5",
		"Ankara", "Çankaya", "Kızılay", "Atatürk Bulvarı", "5")
	bare = Address{Text: "lale sokak 3"}
)

func TestScore_SelfScore(t *testing.T) {
	s := newTestScorer(t, nil)

	for _, a := range []Address{modaA, modaB, kizilay} {
		bd := s.Score(context.Background(), a, a)
		assert.GreaterOrEqual(t, bd.Overall, 0.95, a.Text)
		assert.True(t, bd.IsMatch)
	}
}

func TestScore_SelfScoreOutsideReference(t *testing.T) {
	s := newTestScorer(t, nil)
	// Trabzon is not in the embedded sample dataset
	trabzon := address("trabzon ortahisar kemerkaya mahallesi uzun sokak no 7",
		"Trabzon", "Ortahisar", "Kemerkaya", "Uzun Sokak", "7")

	bd := s.Score(context.Background(), trabzon, trabzon)
	assert.Equal(t, models.GeographicNeutral, bd.Method.Geographic)
	assert.Less(t, bd.Overall, 0.95)

	trabzon.Coordinates = &models.GeoPoint{Lat: 41.005, Lon: 39.73}
	bd = s.Score(context.Background(), trabzon, trabzon)
	assert.Equal(t, models.GeographicCoordinates, bd.Method.Geographic)
	assert.GreaterOrEqual(t, bd.Overall, 0.95)
}

func TestScore_Commutative(t *testing.T) {
	s := newTestScorer(t, nil)
	withCoords := modaB
	withCoords.Coordinates = &models.GeoPoint{Lat: 40.99, Lon: 29.03}

	pairs := [][2]Address{
		{modaA, modaB},
		{modaA, kizilay},
		{modaA, bare},
		{withCoords, kizilay},
		{bare, Address{}},
	}
	for _, p := range pairs {
		ab := s.Score(context.Background(), p[0], p[1])
		ba := s.Score(context.Background(), p[1], p[0])
		assert.InDelta(t, ab.Overall, ba.Overall, 1e-12, "%q vs %q", p[0].Text, p[1].Text)
		assert.InDelta(t, ab.Textual, ba.Textual, 1e-12)
		assert.InDelta(t, ab.Semantic, ba.Semantic, 1e-12)
	}
}

func TestScore_Ranking(t *testing.T) {
	s := newTestScorer(t, nil)

	near := s.Score(context.Background(), modaA, modaB)
	far := s.Score(context.Background(), modaA, kizilay)

	assert.Greater(t, near.Overall, far.Overall)
	assert.True(t, near.IsMatch)
	assert.False(t, far.IsMatch)
	assert.Equal(t, models.GeographicCentroid, near.Method.Geographic)
}

func TestScore_GeographicDecay(t *testing.T) {
	s := NewScorer(config.Default().Similarity, nil, nil, zap.NewNop())
	origin := models.GeoPoint{Lat: 41.0, Lon: 29.0}

	tests := []struct {
		name string
		to   models.GeoPoint
	}{
		{"same point", origin},
		{"about five km", models.GeoPoint{Lat: 41.045, Lon: 29.0}},
		{"about fifty km", models.GeoPoint{Lat: 41.45, Lon: 29.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Address{Text: "a", Coordinates: &origin}
			to := tt.to
			b := Address{Text: "b", Coordinates: &to}

			got, method := s.geographic(a, b)

			want := math.Pow(0.5, origin.DistanceMeters(to)/5000)
			assert.InDelta(t, want, got, 1e-9)
			assert.Equal(t, models.GeographicCoordinates, method)
		})
	}

	far := models.GeoPoint{Lat: 41.45, Lon: 29.0}
	got, _ := s.geographic(Address{Coordinates: &origin}, Address{Coordinates: &far})
	assert.Less(t, got, 0.01)
}

func TestScore_NeutralGeographic(t *testing.T) {
	s := NewScorer(config.Default().Similarity, nil, nil, zap.NewNop())

	bd := s.Score(context.Background(), bare, bare)

	assert.Equal(t, 0.5, bd.Geographic)
	assert.Equal(t, models.GeographicNeutral, bd.Method.Geographic)
}

func TestScore_MissingComponentsScoreZero(t *testing.T) {
	s := newTestScorer(t, nil)
	partial := modaA
	partial.Components.Street = models.Field{}
	partial.Components.BuildingNumber = models.Field{}

	bd := s.Score(context.Background(), modaA, partial)

	assert.InDelta(t, 0.75, bd.Hierarchical, 1e-9)
}

func TestScore_TokenOverlapFallback(t *testing.T) {
	s := newTestScorer(t, nil)

	bd := s.Score(context.Background(), modaA, modaB)

	assert.Equal(t, models.SemanticTokenOverlap, bd.Method.Semantic)
	// province and district agree
	assert.InDelta(t, math.Min(1, jaccard(tokenSet(modaA.Text), tokenSet(modaB.Text))+0.2), bd.Semantic, 1e-9)
}

func TestScore_Embedding(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		modaA.Text:   {1, 0, 0},
		kizilay.Text: {0, 1, 0},
	}}
	s := newTestScorer(t, emb)

	bd := s.Score(context.Background(), modaA, kizilay)
	assert.Equal(t, models.SemanticEmbedding, bd.Method.Semantic)
	assert.Zero(t, bd.Semantic)

	s.Score(context.Background(), modaA, kizilay)
	assert.Equal(t, 2, emb.calls, "vectors are cached")
}

func TestScore_EmbeddingErrorFallsBack(t *testing.T) {
	s := newTestScorer(t, &fakeEmbedder{err: errors.New("connection refused")})

	bd := s.Score(context.Background(), modaA, modaB)

	assert.Equal(t, models.SemanticTokenOverlap, bd.Method.Semantic)
}

func TestScore_PatternBonus(t *testing.T) {
	s := newTestScorer(t, nil)
	a := Address{Text: "moda mahallesi lale sokak", Patterns: []string{"mah", "sk"}}
	b := Address{Text: "moda mahallesi lale sokağı", Patterns: []string{"sk", "mah"}}

	with := s.textual(a, b)
	b.Patterns = []string{"mh"}
	without := s.textual(a, b)

	assert.InDelta(t, 0.05, with-without, 1e-9)
}

func TestTextSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "moda caferağa sokak", "moda caferağa sokak", 1, 1},
		{"reordered", "caferağa sokak moda", "moda caferağa sokak", 0.95, 1},
		{"diacritics only", "kadıköy moda", "kadikoy moda", 1, 1},
		{"disjoint", "moda", "kızılay", 0, 0.5},
		{"empty", "", "moda", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textSimilarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestComponentAgreement(t *testing.T) {
	assert.Equal(t, 1.0, componentAgreement(models.KindDistrict, "Kadıköy", "kadikoy"))
	assert.Zero(t, componentAgreement(models.KindDistrict, "Kadıköy", "Üsküdar"))
	assert.Greater(t, componentAgreement(models.KindStreet, "Caferağa Sokak", "Caferaga Sokagi"), 0.85)
	assert.Zero(t, componentAgreement(models.KindStreet, "Lale Sokak", "Atatürk Bulvarı"))
}

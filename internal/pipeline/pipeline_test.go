package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var (
	assetsOnce sync.Once
	assets     Assets
	assetsErr  error
)

func testAssets(t *testing.T) Assets {
	t.Helper()
	assetsOnce.Do(func() {
		assets, assetsErr = LoadAssets(config.DataCfg{}, zap.NewNop())
	})
	require.NoError(t, assetsErr)
	return assets
}

func newOrchestrator(t *testing.T, st store.CandidateStore, tweak ...func(*config.ResolverCfg)) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	for _, fn := range tweak {
		fn(&cfg)
	}
	return Build(cfg, testAssets(t), Options{Store: st}, zaptest.NewLogger(t))
}

// stubStore lets tests script store behaviour.
type stubStore struct {
	nearby    func(ctx context.Context) ([]models.AddressRecord, error)
	hierarchy func(ctx context.Context) ([]models.AddressRecord, error)
}

func (s *stubStore) FindNearby(ctx context.Context, _ models.GeoPoint, _ float64, _ int) ([]models.AddressRecord, error) {
	if s.nearby == nil {
		return nil, nil
	}
	return s.nearby(ctx)
}

func (s *stubStore) FindByHierarchy(ctx context.Context, _ store.HierarchyQuery, _ int) ([]models.AddressRecord, error) {
	if s.hierarchy == nil {
		return nil, nil
	}
	return s.hierarchy(ctx)
}

func (s *stubStore) Insert(context.Context, models.AddressRecord) (string, error) { return "", nil }
func (s *stubStore) Close(context.Context) error                                  { return nil }

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	moda := models.GeoPoint{Lat: 40.9833, Lon: 29.0264}
	caferaga := models.GeoPoint{Lat: 40.9873, Lon: 29.0271}
	kizilay := models.GeoPoint{Lat: 39.9208, Lon: 32.8541}
	recs := []models.AddressRecord{
		{
			RawText:     "Moda Mahallesi Caferağa Sokak No 10 Kadıköy İstanbul",
			Components:  map[string]string{"province": "İstanbul", "district": "Kadıköy", "neighborhood": "Moda", "street": "Caferağa Sokak", "building_number": "10"},
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
			Coordinates: &kizilay, Confidence: 0.8, Status: models.RecordValid,
		},
	}
	ms := store.NewMemoryStore()
	for _, r := range recs {
		_, err := ms.Insert(context.Background(), r)
		require.NoError(t, err)
	}
	return ms
}

func TestProcess_NormalizedScenario(t *testing.T) {
	o := newOrchestrator(t, nil)

	res := o.Process(context.Background(), models.RawInput{Text: "istbl kadikoy moda mah caferaga sk 10"})

	require.Nil(t, res.Error)
	assert.Equal(t, models.StatusCompleted, res.Status)
	assert.Equal(t, models.StageCompleted, res.Stage)
	assert.Equal(t, "İstanbul", res.Components.Province.Value)
	assert.Equal(t, "Kadıköy", res.Components.District.Value)
	assert.Contains(t, res.Components.Neighborhood.Value, "Moda")
	assert.NotEmpty(t, res.Corrections)
	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.IsConsistent)
	assert.Greater(t, res.OverallConfidence, 0.5)
	assert.LessOrEqual(t, res.OverallConfidence, 1.0)

	for _, step := range []string{StepNormalize, StepParse, StepValidate, StepFetch, StepScore, StepAggregate, StepTotal} {
		assert.Contains(t, res.StepTimingsMs, step)
	}
}

func TestProcess_InvalidInput(t *testing.T) {
	o := newOrchestrator(t, nil)
	bad := models.GeoPoint{Lat: 120, Lon: 10}

	tests := []struct {
		name string
		in   models.RawInput
	}{
		{"empty", models.RawInput{Text: ""}},
		{"whitespace", models.RawInput{Text: "   \t"}},
		{"too short", models.RawInput{Text: "ab"}},
		{"punctuation only", models.RawInput{Text: ",,, ;;"}},
		{"bad coordinates", models.RawInput{Text: "moda mahallesi kadıköy", Coordinates: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := o.Process(context.Background(), tt.in)

			assert.True(t, res.Failed())
			assert.Equal(t, models.StageError, res.Stage)
			require.NotNil(t, res.Error)
			assert.Equal(t, string(KindInvalidInput), res.Error.Kind)
			assert.Zero(t, res.OverallConfidence)
			assert.Empty(t, res.Candidates)
		})
	}
}

func TestProcess_RanksCandidates(t *testing.T) {
	o := newOrchestrator(t, seededStore(t))
	moda := models.GeoPoint{Lat: 40.9834, Lon: 29.0265}

	res := o.Process(context.Background(), models.RawInput{
		Text:        "Moda Mah. Caferağa Sk. No:10 Kadıköy/İstanbul",
		Coordinates: &moda,
	})

	require.Equal(t, models.StatusCompleted, res.Status)
	require.GreaterOrEqual(t, len(res.Candidates), 2)
	assert.LessOrEqual(t, len(res.Candidates), config.Default().Pipeline.TopK)
	assert.Equal(t, "Moda Mahallesi Caferağa Sokak No 10 Kadıköy İstanbul", res.Candidates[0].Text)
	assert.True(t, res.Candidates[0].Breakdown.IsMatch)
	require.NotNil(t, res.Candidates[0].DistanceMeters)
	for i := 1; i < len(res.Candidates); i++ {
		assert.GreaterOrEqual(t, res.Candidates[i-1].Breakdown.Overall, res.Candidates[i].Breakdown.Overall)
	}

	seen := map[string]bool{}
	for _, c := range res.Candidates {
		assert.False(t, seen[c.ID], "duplicate candidate %s", c.ID)
		seen[c.ID] = true
	}

	// the best candidate lifts the aggregate above the no-store run
	bare := newOrchestrator(t, nil).Process(context.Background(), models.RawInput{
		Text:        "Moda Mah. Caferağa Sk. No:10 Kadıköy/İstanbul",
		Coordinates: &moda,
	})
	assert.Greater(t, res.OverallConfidence, bare.OverallConfidence)
}

func TestProcess_StoreFailureDegrades(t *testing.T) {
	failing := &stubStore{hierarchy: func(context.Context) ([]models.AddressRecord, error) {
		return nil, errors.New("connection refused")
	}}
	o := newOrchestrator(t, failing)

	res := o.Process(context.Background(), models.RawInput{Text: "kızılay mahallesi çankaya ankara"})

	assert.Equal(t, models.StatusCompleted, res.Status)
	assert.Empty(t, res.Candidates)
	assert.True(t, hasWarning(res, KindStoreFailure))
}

func TestProcess_StoreTimeoutDegrades(t *testing.T) {
	slow := &stubStore{hierarchy: func(ctx context.Context) ([]models.AddressRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	o := newOrchestrator(t, slow, func(c *config.ResolverCfg) { c.Pipeline.StoreTimeout = 20 * time.Millisecond })

	start := time.Now()
	res := o.Process(context.Background(), models.RawInput{Text: "kızılay mahallesi çankaya ankara"})

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, models.StatusCompleted, res.Status)
	assert.True(t, hasWarning(res, KindStoreFailure))
}

func TestProcess_PanicBecomesError(t *testing.T) {
	broken := &stubStore{hierarchy: func(context.Context) ([]models.AddressRecord, error) {
		panic("nil map write")
	}}
	o := newOrchestrator(t, broken)

	res := o.Process(context.Background(), models.RawInput{Text: "kızılay mahallesi çankaya ankara"})

	assert.True(t, res.Failed())
	require.NotNil(t, res.Error)
	assert.Equal(t, string(KindInternal), res.Error.Kind)
	assert.Equal(t, models.StageValidated, res.Error.Stage)
	// stages before the failure are preserved
	assert.Equal(t, "Ankara", res.Components.Province.Value)
	assert.NotNil(t, res.Validation)
	assert.Contains(t, res.StepTimingsMs, StepTotal)
}

func TestProcess_Cancelled(t *testing.T) {
	o := newOrchestrator(t, seededStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := o.Process(ctx, models.RawInput{Text: "kızılay mahallesi çankaya ankara"})

	require.NotNil(t, res.Error)
	assert.Equal(t, string(KindCancelled), res.Error.Kind)
}

func TestProcess_ConfidenceInRange(t *testing.T) {
	o := newOrchestrator(t, seededStore(t))
	inputs := []string{
		"istbl kadikoy moda mah caferaga sk 10",
		"lale sokak 3",
		"xyz qwerty asdf",
		"istanbul çankaya kızılay mahallesi",
		"06420 çankaya",
		"No:5 D:3",
	}
	for _, in := range inputs {
		res := o.Process(context.Background(), models.RawInput{Text: in})
		assert.GreaterOrEqual(t, res.OverallConfidence, 0.0, in)
		assert.LessOrEqual(t, res.OverallConfidence, 1.0, in)
		assert.Equal(t, models.StatusCompleted, res.Status, in)
	}
}

func TestProcessBatch(t *testing.T) {
	o := newOrchestrator(t, seededStore(t))
	inputs := []models.RawInput{
		{Text: "istbl kadikoy moda mah caferaga sk 10"},
		{Text: ""},
		{Text: "kızılay mahallesi çankaya ankara"},
		{Text: "x"},
		{Text: "nilüfer bursa"},
	}

	batch := o.ProcessBatch(context.Background(), inputs)

	assert.Equal(t, 5, batch.Total)
	assert.Equal(t, 3, batch.Succeeded)
	assert.Equal(t, 2, batch.Failed)
	assert.Zero(t, batch.Pending)
	assert.False(t, batch.Cancelled)
	require.Len(t, batch.Results, 5)
	for i, r := range batch.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, inputs[i].Text, r.Raw)
	}
	assert.True(t, batch.Results[1].Failed())
	assert.Greater(t, batch.Throughput, 0.0)
}

func TestProcessBatch_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int64
	counting := &stubStore{hierarchy: func(context.Context) ([]models.AddressRecord, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return nil, nil
	}}
	o := newOrchestrator(t, counting, func(c *config.ResolverCfg) { c.Pipeline.BatchConcurrency = 2 })

	inputs := make([]models.RawInput, 12)
	for i := range inputs {
		inputs[i] = models.RawInput{Text: "kızılay mahallesi çankaya ankara"}
	}
	batch := o.ProcessBatch(context.Background(), inputs)

	assert.Equal(t, 12, batch.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestProcessBatch_CancelKeepsFinished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls int64
	cancelling := &stubStore{hierarchy: func(ctx context.Context) ([]models.AddressRecord, error) {
		if atomic.AddInt64(&calls, 1) == 3 {
			cancel()
			return nil, ctx.Err()
		}
		return nil, nil
	}}
	o := newOrchestrator(t, cancelling, func(c *config.ResolverCfg) { c.Pipeline.BatchConcurrency = 1 })

	inputs := make([]models.RawInput, 6)
	for i := range inputs {
		inputs[i] = models.RawInput{Text: "kızılay mahallesi çankaya ankara"}
	}
	batch := o.ProcessBatch(ctx, inputs)

	assert.True(t, batch.Cancelled)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 4, batch.Pending)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, 0, batch.Results[0].Index)
	assert.Equal(t, 1, batch.Results[1].Index)
}

func TestCompare_AbbreviatedVariant(t *testing.T) {
	o := newOrchestrator(t, nil)

	b, err := o.Compare(context.Background(),
		models.RawInput{Text: "İstanbul Kadıköy Moda Mahallesi Caferağa Sokak No 10"},
		models.RawInput{Text: "istanbul kadikoy moda mah caferaga sk no:10"})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, b.Overall, 0.75)
	assert.True(t, b.IsMatch)
}

func TestCompare_InvalidInput(t *testing.T) {
	o := newOrchestrator(t, nil)

	_, err := o.Compare(context.Background(), models.RawInput{Text: "moda kadıköy"}, models.RawInput{Text: ""})

	assert.True(t, IsInvalidInput(err))
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestCluster(t *testing.T) {
	o := newOrchestrator(t, nil)

	groups, err := o.Cluster(context.Background(), []models.RawInput{
		{Text: "İstanbul Kadıköy Moda Mahallesi Caferağa Sokak No 10"},
		{Text: "Kızılay Mahallesi Atatürk Bulvarı No 5 Çankaya Ankara"},
		{Text: "istanbul kadikoy moda mah caferaga sk no:10"},
		{Text: ""},
	})

	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 2}}, groups)
}

func TestValidate_ForeignDistrict(t *testing.T) {
	o := newOrchestrator(t, nil)
	var c models.AddressComponents
	c.Province = models.Field{Value: "İstanbul", Confidence: 0.95}
	c.District = models.Field{Value: "Çankaya", Confidence: 0.9}
	c.Neighborhood = models.Field{Value: "Kızılay", Confidence: 0.85}

	v := o.Validate(c)

	assert.False(t, v.IsConsistent)
	assert.True(t, v.HasIssue(string(models.KindDistrict)))
}

func TestAggregate(t *testing.T) {
	w := config.Default().Pipeline.Aggregation

	tests := []struct {
		name                                  string
		validation, parsing, correction, best float64
		want                                  float64
	}{
		{"all perfect", 1, 1, 1, 1, 1},
		{"no candidates", 1, 1, 1, 0, 0.75},
		{"nothing", 0, 0, 0, 0, 0},
		{"mixed", 0.8, 0.6, 0.9, 0.5, 0.35*0.8 + 0.25*0.6 + 0.15*0.9 + 0.25*0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, aggregate(w, tt.validation, tt.parsing, tt.correction, tt.best), 1e-9)
		})
	}

	assert.Equal(t, 1.0, aggregate(config.AggregationWeights{Validation: 2}, 1, 0, 0, 0))
}

func hasWarning(res *models.ProcessingResult, kind ErrorKind) bool {
	for _, w := range res.Warnings {
		if strings.HasPrefix(w, string(kind)+":") {
			return true
		}
	}
	return false
}

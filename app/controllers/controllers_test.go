package controllers_test

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/controllers"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/app/responses"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/internal/pipeline"
	"github.com/address-resolver/internal/store"
	"github.com/address-resolver/routes"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	assetsOnce sync.Once
	assets     pipeline.Assets
	assetsErr  error
)

type server struct {
	router    *gin.Engine
	addresses *services.AddressService
}

func newServer(t *testing.T, probes map[string]func(context.Context) error) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	assetsOnce.Do(func() {
		assets, assetsErr = pipeline.LoadAssets(config.DataCfg{}, zap.NewNop())
	})
	require.NoError(t, assetsErr)

	logger := zap.NewNop()
	ms := store.NewMemoryStore()
	cache := services.NewCacheService(100, time.Hour)
	p := pipeline.Build(config.Default(), assets, pipeline.Options{Store: ms}, logger)
	addresses := services.NewAddressService(p, cache, nil, logger)
	admin := services.NewAdminService(ms, assets.Index, nil, cache, addresses, logger)

	router := gin.New()
	routes.SetupAllRoutes(router,
		controllers.NewAddressController(addresses, probes, logger),
		controllers.NewAdminController(admin, logger),
		routes.Options{},
		logger)
	return &server{router: router, addresses: addresses}
}

func (s *server) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestResolve(t *testing.T) {
	s := newServer(t, nil)
	body := gin.H{"address": gin.H{"text": "istbl kadikoy moda mah caferaga sk 10"}, "options": gin.H{"use_cache": true}}

	w := s.do(t, http.MethodPost, "/v1/addresses/resolve", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	resp := decode[responses.ResolveResponse](t, w)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, models.StatusCompleted, resp.Result.Status)
	assert.Equal(t, "İstanbul", resp.Result.Components.Province.Value)
	assert.NotEmpty(t, resp.DictionaryVersion)

	w = s.do(t, http.MethodPost, "/v1/addresses/resolve", body)
	assert.True(t, decode[responses.ResolveResponse](t, w).CacheHit)
}

func TestResolve_BadRequests(t *testing.T) {
	s := newServer(t, nil)

	tests := []struct {
		name string
		body interface{}
		code int
		err  string
	}{
		{"missing address", gin.H{}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"top_k out of range", gin.H{"address": gin.H{"text": "moda kadıköy"}, "options": gin.H{"top_k": 500}}, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/v1/addresses/resolve", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.err, decode[responses.ErrorResponse](t, w).Error)
		})
	}

	t.Run("too short", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/v1/addresses/resolve", gin.H{"address": gin.H{"text": "ab"}})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decode[responses.ResolveResponse](t, w)
		require.NotNil(t, resp.Result.Error)
		assert.Equal(t, string(pipeline.KindInvalidInput), resp.Result.Error.Kind)
	})
}

func TestResolveBatch(t *testing.T) {
	s := newServer(t, nil)
	w := s.do(t, http.MethodPost, "/v1/addresses/batch", gin.H{"addresses": []gin.H{
		{"text": "kızılay mahallesi çankaya ankara"},
		{"text": "nilüfer bursa"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	batch := decode[models.BatchResult](t, w)
	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 2, batch.Succeeded)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, 0, batch.Results[0].Index)
}

func TestJobLifecycle(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/addresses/jobs", gin.H{"addresses": []gin.H{
		{"text": "kızılay mahallesi çankaya ankara"},
		{"text": "moda kadıköy istanbul"},
	}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	accepted := decode[responses.JobAcceptedResponse](t, w)
	require.NotEmpty(t, accepted.JobID)

	require.Eventually(t, func() bool {
		w := s.do(t, http.MethodGet, "/v1/addresses/jobs/"+accepted.JobID+"/status", nil)
		return w.Code == http.StatusOK && decode[responses.JobStatusResponse](t, w).Status == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	w = s.do(t, http.MethodGet, "/v1/addresses/jobs/"+accepted.JobID+"/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[models.BatchResult](t, w).Succeeded)

	t.Run("ndjson gzip", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/addresses/jobs/"+accepted.JobID+"/results?format=ndjson&gzip=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

		zr, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		lines := 0
		sc := bufio.NewScanner(zr)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			var r models.ProcessingResult
			require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
			lines++
		}
		assert.Equal(t, 2, lines)
	})

	t.Run("unknown job", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/addresses/jobs/nope/status", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "JOB_NOT_FOUND", decode[responses.ErrorResponse](t, w).Error)
	})
}

func TestCompareAndCluster(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/addresses/compare", gin.H{
		"first":  gin.H{"text": "İstanbul Kadıköy Moda Mahallesi Caferağa Sokak No 10"},
		"second": gin.H{"text": "istanbul kadikoy moda mah caferaga sk no:10"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.GreaterOrEqual(t, decode[responses.CompareResponse](t, w).Similarity.Overall, 0.75)

	w = s.do(t, http.MethodPost, "/v1/addresses/compare", gin.H{
		"first":  gin.H{"text": ""},
		"second": gin.H{"text": "moda kadıköy"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/addresses/cluster", gin.H{"addresses": []gin.H{
		{"text": "İstanbul Kadıköy Moda Mahallesi Caferağa Sokak No 10"},
		{"text": "Kızılay Mahallesi Atatürk Bulvarı No 5 Çankaya Ankara"},
		{"text": "istanbul kadikoy moda mah caferaga sk no:10"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, [][]int{{0, 2}}, decode[responses.ClusterResponse](t, w).Clusters)
}

func TestValidate(t *testing.T) {
	s := newServer(t, nil)
	w := s.do(t, http.MethodPost, "/v1/addresses/validate", gin.H{"components": gin.H{
		"province":     "İstanbul",
		"district":     "Çankaya",
		"neighborhood": "Kızılay",
	}})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[models.ValidationResult](t, w)
	assert.False(t, res.IsConsistent)
	assert.True(t, res.HasIssue("district"))
}

func TestAdminEndpoints(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/admin/records", gin.H{
		"raw_text":   "Moda Mahallesi Kadıköy İstanbul",
		"components": gin.H{"province": "İstanbul", "district": "Kadıköy"},
		"confidence": 0.9,
		"status":     "valid",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[responses.InsertRecordResponse](t, w).ID)

	w = s.do(t, http.MethodPost, "/v1/admin/records", gin.H{"raw_text": "x", "status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_RECORD", decode[responses.ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodPost, "/v1/admin/reference/seed", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/v1/admin/reference/search?q=moda&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotZero(t, decode[responses.ReferenceSearchResponse](t, w).Total)

	w = s.do(t, http.MethodGet, "/v1/admin/reference/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/admin/reference/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())

	w = s.do(t, http.MethodPost, "/v1/admin/cache/invalidate", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/v1/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[services.SystemStats](t, w)
	assert.Positive(t, stats.Reference.Neighborhoods)
}

func TestProbes(t *testing.T) {
	down := errors.New("connection refused")
	s := newServer(t, map[string]func(context.Context) error{
		"redis": func(context.Context) error { return down },
	})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/live", nil).Code)

	w := s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode[responses.HealthCheckResponse](t, w).Services["redis"], "connection refused")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/nope", nil).Code)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(routes.RateLimit(0.001, 1))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

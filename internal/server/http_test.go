package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"movieflix/internal/biz"
	"movieflix/internal/conf"
	"movieflix/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	lakeErr  error
	pingErr  error
	lakeHits int
	top      []*biz.GenreTopMovie
}

func (s *stubStore) ReadBatch(_ context.Context, phase biz.Phase) (*biz.Batch, error) {
	s.lakeHits++
	if s.lakeErr != nil {
		return nil, s.lakeErr
	}
	return &biz.Batch{Phase: phase, Users: []biz.StagingUser{{}, {}}}, nil
}

func (s *stubStore) EnsureSchema(context.Context) error        { return nil }
func (s *stubStore) Replace(context.Context, *biz.Batch) error { return nil }
func (s *stubStore) ConformV3(context.Context) error           { return nil }
func (s *stubStore) Load(context.Context) error                { return nil }
func (s *stubStore) Build(context.Context) error               { return nil }
func (s *stubStore) Invalidate(context.Context)                {}
func (s *stubStore) Ping(context.Context) error                { return s.pingErr }
func (s *stubStore) InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
func (s *stubStore) WithLock(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (s *stubStore) TopByGenre(context.Context) ([]*biz.GenreTopMovie, error) { return s.top, nil }

func (s *stubStore) AvgByAgeRange(context.Context) ([]*biz.AgeRangeAverage, error) {
	return []*biz.AgeRangeAverage{{AgeRange: "25-34", AvgRating: 4.5, N: 2}}, nil
}

func (s *stubStore) RatingsByCountry(context.Context) ([]*biz.CountryCount, error) {
	return []*biz.CountryCount{{N: 3}}, nil
}

func (s *stubStore) QualityMetrics(context.Context) ([]*biz.QualityMetric, error) {
	return []*biz.QualityMetric{
		{Metric: biz.MetricRatingsOutOfRange, Value: 0},
		{Metric: biz.MetricUsersAgeUnknown, Value: 1},
		{Metric: biz.MetricMoviesYearNull, Value: 0},
	}, nil
}

func (s *stubStore) Snapshot(context.Context) (*biz.Snapshot, error) {
	return &biz.Snapshot{Movies: []*biz.WarehouseMovie{{ID: 1, IMDbID: "tt1"}}}, nil
}

func (s *stubStore) Write(_ context.Context, snap *biz.Snapshot) (*biz.ExportSummary, error) {
	return &biz.ExportSummary{Dir: "/tmp/export", Rows: biz.ExportCounts{DWMovies: len(snap.Movies)}}, nil
}

func newTestServer(store *stubStore) http.Handler {
	logger := log.NewStdLogger(io.Discard)
	pipeline := biz.NewPipelineUseCase(store, store, store, store, store, store, store, store, logger)
	insights := biz.NewInsightsUseCase(store, store, logger)
	return NewHTTPServer(&conf.Server{}, service.NewEtlService(pipeline), service.NewInsightsService(insights), logger)
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newTestServer(&stubStore{}), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	rec, body = do(t, newTestServer(&stubStore{pingErr: errors.New("refused")}), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "STORE_UNAVAILABLE", body["reason"])
}

func TestIngestRejectsInvalidPhase(t *testing.T) {
	store := &stubStore{}
	h := newTestServer(store)

	for _, target := range []string{
		"/api/datalake/ingest?phase=raw_v9",
		"/api/datalake/ingest",
		"/api/datalake/pipeline?phase=RAW_V1",
	} {
		rec, body := do(t, h, http.MethodPost, target)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, target)
		assert.Equal(t, "INVALID_PHASE", body["reason"], target)
	}
	assert.Zero(t, store.lakeHits)
}

func TestIngest(t *testing.T) {
	rec, body := do(t, newTestServer(&stubStore{}), http.MethodPost, "/api/datalake/ingest?phase=improved_v2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "improved_v2", body["phase"])
	assert.Equal(t, service.StatusStaged, body["status"])
	assert.Equal(t, map[string]any{"movies": 0.0, "users": 2.0, "ratings": 0.0}, body["rows"])
}

func TestIngestDataSourceError(t *testing.T) {
	store := &stubStore{lakeErr: &biz.DataSourceError{File: "raw_v1/movies.csv", Err: errors.New("file not found")}}
	rec, body := do(t, newTestServer(store), http.MethodPost, "/api/datalake/ingest?phase=raw_v1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DATA_SOURCE_ERROR", body["reason"])
	assert.Contains(t, body["message"], "raw_v1/movies.csv")
}

func TestPipeline(t *testing.T) {
	rec, body := do(t, newTestServer(&stubStore{}), http.MethodPost, "/api/datalake/pipeline?phase=reformulated_v3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reformulated_v3", body["phase"])
	assert.Equal(t, service.StatusPipeline, body["status"])
	assert.NotEmpty(t, body["run_id"])

	export, ok := body["export"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/tmp/export", export["dir"])
	assert.Equal(t, 1.0, export["rows"].(map[string]any)["dw_movies"])
}

func TestExport(t *testing.T) {
	rec, body := do(t, newTestServer(&stubStore{}), http.MethodGet, "/api/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.StatusExported, body["status"])
}

func TestInsightsEndpoints(t *testing.T) {
	title := "Heat"
	h := newTestServer(&stubStore{top: []*biz.GenreTopMovie{{MovieID: 1, Title: &title, AvgRating: 4.5, NRatings: 2}}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/insights/top10-by-genre", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"genre":null,"movie_id":1,"title":"Heat","avg_rating":4.5,"n_ratings":2}]`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/insights/by-country", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"country":null,"n":3}]`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/insights/avg-by-age", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"age_range":"25-34","avg_rating":4.5,"n":2}]`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quality/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
	  {"metric":"ratings_out_of_range","value":0},
	  {"metric":"users_age_unknown","value":1},
	  {"metric":"movies_year_null","value":0}
	]`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/datalake/pipeline?phase=raw_v1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	newTestServer(&stubStore{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

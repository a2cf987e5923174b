package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/adapter/httpadapter"
	"github.com/couchcryptid/bloomwatch/internal/analysis"
	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/scanner"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockAnalyzer struct {
	err error

	detectReq     analysis.DetectRequest
	timeseriesReq analysis.TimeseriesRequest
	predictReq    analysis.PredictRequest
	indicesLoc    domain.Location
	indicesDate   time.Time
}

func (m *mockAnalyzer) Detect(_ context.Context, req analysis.DetectRequest) (analysis.DetectReport, error) {
	m.detectReq = req
	if m.err != nil {
		return analysis.DetectReport{}, m.err
	}
	return analysis.DetectReport{
		Status:   domain.DetectionOK,
		Location: req.Location,
		Events:   []domain.BloomEvent{{Kind: domain.KindPeakBloom, PeakValue: 0.75}},
	}, nil
}

func (m *mockAnalyzer) Timeseries(_ context.Context, req analysis.TimeseriesRequest) (analysis.TimeseriesReport, error) {
	m.timeseriesReq = req
	if m.err != nil {
		return analysis.TimeseriesReport{}, m.err
	}
	return analysis.TimeseriesReport{Location: req.Location, Season: domain.SeasonSpring, Timeseries: []domain.YearlySummary{{Year: 2024}}}, nil
}

func (m *mockAnalyzer) Predict(_ context.Context, req analysis.PredictRequest) (analysis.PredictReport, error) {
	m.predictReq = req
	if m.err != nil {
		return analysis.PredictReport{}, m.err
	}
	return analysis.PredictReport{Location: req.Location, Prediction: domain.Prediction{Status: domain.PredictionInsufficientData}}, nil
}

func (m *mockAnalyzer) CalculateIndices(_ context.Context, loc domain.Location, date time.Time) (analysis.IndicesReport, error) {
	m.indicesLoc, m.indicesDate = loc, date
	if m.err != nil {
		return analysis.IndicesReport{}, m.err
	}
	return analysis.IndicesReport{Location: loc, Date: date, NDVI: 0.42}, nil
}

type mockScanner struct {
	result    scanner.Result
	scanReq   scanner.Request
	regionKey string
}

func (m *mockScanner) Scan(_ context.Context, req scanner.Request) (scanner.Result, error) {
	m.scanReq = req
	return m.result, nil
}

func (m *mockScanner) ScanRegion(_ context.Context, key string, _, _ time.Time, _ string, _ func(int, int)) (scanner.Result, error) {
	m.regionKey = key
	return m.result, nil
}

type fixture struct {
	srv      *httpadapter.Server
	analyzer *mockAnalyzer
	scanner  *mockScanner
}

func newFixture(readyErr error) *fixture {
	f := &fixture{
		analyzer: &mockAnalyzer{},
		scanner:  &mockScanner{result: scanner.Result{Status: scanner.StatusSuccess}},
	}
	f.srv = httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, f.analyzer, f.scanner,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- health, readiness, metrics ---

func TestHealthzReturns200(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := newFixture(fmt.Errorf("not ready yet")).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- API ---

func TestAPIIndex(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "bloomwatch", body["name"])
	assert.Contains(t, body["endpoints"], "POST /api/bloom/detect")
}

func TestDetect(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/api/bloom/detect",
		`{"lat":34.7,"lon":-118.1,"start_date":"2024-03-01","end_date":"2024-05-31","buffer_km":5,"satellite":"sentinel-2"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Len(t, body["bloom_events"], 1)

	req := f.analyzer.detectReq
	assert.Equal(t, domain.Location{Lat: 34.7, Lon: -118.1}, req.Location)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), req.Start)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), req.End)
	assert.InDelta(t, 5, req.BufferKm, 0)
	assert.Equal(t, "sentinel-2", req.Satellite)
}

func TestDetect_ZeroCoordinatesAreValid(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/api/bloom/detect", `{"lat":0,"lon":0,"start_date":"2024-03-01","end_date":"2024-05-31"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestDetect_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"lat":`, "invalid request body"},
		{"unknown field", `{"lat":1,"lon":1,"start_date":"2024-03-01","end_date":"2024-05-31","colour":"red"}`, "invalid request body"},
		{"missing lat", `{"lon":1,"start_date":"2024-03-01","end_date":"2024-05-31"}`, `invalid lat: failed "required" constraint`},
		{"latitude out of range", `{"lat":91,"lon":1,"start_date":"2024-03-01","end_date":"2024-05-31"}`, `invalid lat: failed "lte" constraint`},
		{"bad date", `{"lat":1,"lon":1,"start_date":"03/01/2024","end_date":"2024-05-31"}`, `invalid start_date: failed "datetime" constraint`},
		{"dates reversed", `{"lat":1,"lon":1,"start_date":"2024-05-31","end_date":"2024-03-01"}`, "start_date must be before end_date"},
		{"threshold out of range", `{"lat":1,"lon":1,"start_date":"2024-03-01","end_date":"2024-05-31","threshold":1.5}`, `invalid threshold`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := newFixture(nil).do(http.MethodPost, "/api/bloom/detect", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Contains(t, body["error"], tc.want)
		})
	}
}

func TestDetect_ServiceErrors(t *testing.T) {
	const body = `{"lat":1,"lon":1,"start_date":"2024-03-01","end_date":"2024-05-31"}`

	t.Run("no data is 404", func(t *testing.T) {
		f := newFixture(nil)
		f.analyzer.err = fmt.Errorf("fetch: %w", domain.ErrNoData)
		rec := f.do(http.MethodPost, "/api/bloom/detect", body)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "no_data", decodeBody(t, rec)["status"])
	})

	t.Run("other errors are 500", func(t *testing.T) {
		f := newFixture(nil)
		f.analyzer.err = errors.New("catalog request: status 502")
		rec := f.do(http.MethodPost, "/api/bloom/detect", body)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		b := decodeBody(t, rec)
		assert.Equal(t, "error", b["status"])
		assert.Contains(t, b["error"], "502")
	})
}

func TestTimeseries(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/api/bloom/timeseries", `{"lat":34.7,"lon":-118.1,"years":[2022,2023,2024],"season":"summer"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Len(t, body["timeseries"], 1)
	assert.Equal(t, []int{2022, 2023, 2024}, f.analyzer.timeseriesReq.Years)
	assert.Equal(t, domain.Season("summer"), f.analyzer.timeseriesReq.Season)
}

func TestTimeseries_InvalidYear(t *testing.T) {
	rec := newFixture(nil).do(http.MethodPost, "/api/bloom/timeseries", `{"lat":34.7,"lon":-118.1,"years":[1800]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "years[0]")
}

func TestTimeseries_RepeatedYears(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/api/bloom/timeseries", `{"lat":34.7,"lon":-118.1,"years":[2022,2022,2023]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], `invalid years: failed "unique" constraint`)
	assert.Nil(t, f.analyzer.timeseriesReq.Years, "service not called")
}

func TestPredict(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/api/bloom/predict",
		`{"lat":34.7,"lon":-118.1,"years":[2023,2024],"vegetation_type":"desert wildflower","current_date":"2025-01-15"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Contains(t, body, "prediction")

	req := f.analyzer.predictReq
	assert.Equal(t, "desert wildflower", req.VegetationType)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), req.CurrentDate)
	assert.Equal(t, []int{2023, 2024}, req.Years)
}

func TestCalculateIndices(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/api/ndvi/calculate", `{"lat":34.7,"lon":-118.1,"date":"2024-04-18"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.InDelta(t, 0.42, body["ndvi"], 1e-9)
	assert.Equal(t, time.Date(2024, 4, 18, 0, 0, 0, 0, time.UTC), f.analyzer.indicesDate)
}

func TestScan(t *testing.T) {
	t.Run("predefined region", func(t *testing.T) {
		f := newFixture(nil)
		rec := f.do(http.MethodPost, "/api/regions/scan", `{"region":"antelope_valley","start_date":"2024-03-01","end_date":"2024-05-31"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "antelope_valley", f.scanner.regionKey)
	})

	t.Run("bounding box", func(t *testing.T) {
		f := newFixture(nil)
		rec := f.do(http.MethodPost, "/api/regions/scan",
			`{"bbox":[-118.6,34.5,-117.9,34.95],"start_date":"2024-03-01","end_date":"2024-05-31","grid_resolution":0.1}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, orb.Bound{Min: orb.Point{-118.6, 34.5}, Max: orb.Point{-117.9, 34.95}}, f.scanner.scanReq.BBox)
		assert.InDelta(t, 0.1, f.scanner.scanReq.Resolution, 0)
	})

	t.Run("error result is 400", func(t *testing.T) {
		f := newFixture(nil)
		f.scanner.result = scanner.Result{Status: scanner.StatusError, Message: "Unknown region: atlantis"}
		rec := f.do(http.MethodPost, "/api/regions/scan", `{"region":"atlantis","start_date":"2024-03-01","end_date":"2024-05-31"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Unknown region: atlantis", decodeBody(t, rec)["message"])
	})

	badRequests := []struct {
		name string
		body string
	}{
		{"neither region nor bbox", `{"start_date":"2024-03-01","end_date":"2024-05-31"}`},
		{"short bbox", `{"bbox":[1,2,3],"start_date":"2024-03-01","end_date":"2024-05-31"}`},
		{"inverted bbox", `{"bbox":[3,2,1,0],"start_date":"2024-03-01","end_date":"2024-05-31"}`},
	}
	for _, tc := range badRequests {
		t.Run(tc.name, func(t *testing.T) {
			rec := newFixture(nil).do(http.MethodPost, "/api/regions/scan", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSuggestRegions(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/api/regions/suggest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.InDelta(t, 7, body["count"], 0)
	assert.Len(t, body["regions"], 7)
}

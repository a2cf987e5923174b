package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/observability"
	"github.com/couchcryptid/bloomwatch/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.BloomReport, error) {
	if m.err != nil {
		return domain.BloomReport{}, m.err
	}
	return domain.BloomReport{ID: string(raw.Key), Status: domain.DetectionOK}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.BloomReport
	fails  int
}

func (m *mockLoader) LoadBatch(_ context.Context, reports []domain.BloomReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails > 0 {
		m.fails--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, reports...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawEvent(t, "series-1")

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, "series-1", ldr.loaded[0].ID)
	assert.True(t, p.Ready())
	require.NoError(t, p.CheckReadiness(ctx))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SeriesConsumed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReportsProduced), 0)
	assert.Zero(t, testutil.ToFloat64(metrics.PipelineRunning), "gauge resets on shutdown")
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformError(t *testing.T) {
	committed := false
	raw := makeRawEvent(t, "series-2")
	raw.Commit = func(_ context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.False(t, p.Ready())
	assert.True(t, committed, "poison messages are committed so they are not redelivered")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int32

	batch := make([]domain.RawEvent, 3)
	for i := range batch {
		batch[i] = makeRawEvent(t, "series-"+string(rune('a'+i)))
		batch[i].Topic = "vegetation-series"
		batch[i].Commit = func(_ context.Context) error {
			commits.Add(1)
			return nil
		}
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{batch}}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 3, ldr.count())
	assert.Equal(t, int32(3), commits.Load())
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	committed := false
	raw := makeRawEvent(t, "series-3")
	raw.Commit = func(_ context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{fails: 1}
	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, ldr.count())
	assert.False(t, committed)
	assert.False(t, p.Ready())
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("connection refused")}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, p.Run(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond, "Run returns only when the context ends")
}

func TestBloomTransformer_Transform(t *testing.T) {
	metrics := newTestMetrics()
	tfm := pipeline.NewTransformer(domain.NewDetector(domain.DefaultDetectorConfig()), slog.Default(), metrics)

	data, err := json.Marshal(domain.SeriesMessage{
		ID:       "series-4",
		Location: domain.Location{Lat: 34.7, Lon: -118.1},
		Dates:    []string{"2024-03-01", "2024-03-17", "2024-04-02", "2024-04-18", "2024-05-04", "2024-05-20"},
		Values:   []float64{0.2, 0.3, 0.45, 0.75, 0.5, 0.3},
	})
	require.NoError(t, err)

	report, err := tfm.Transform(context.Background(), domain.RawEvent{Value: data})
	require.NoError(t, err)
	assert.Equal(t, "series-4", report.ID)
	assert.Equal(t, domain.DetectionOK, report.Status)
	require.Len(t, report.Events, 1)
	assert.Equal(t, domain.KindPeakBloom, report.Events[0].Kind)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BloomEventsDetected.WithLabelValues("peak_bloom")), 0)

	_, err = tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	assert.Error(t, err)
}

// --- helpers ---

func makeRawEvent(t *testing.T, id string) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.SeriesMessage{
		ID:       id,
		Location: domain.Location{Lat: 35.0, Lon: -97.0},
		Values:   []float64{0.3, 0.6, 0.3},
	})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(id),
		Value: data,
	}
}

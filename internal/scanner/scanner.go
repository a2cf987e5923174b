// Package scanner analyzes a grid of points over a bounding box and
// aggregates the bloom locations into a regional summary.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/analysis"
	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/observability"
	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// DefaultResolution is the grid spacing in degrees when a request sets none.
const DefaultResolution = 0.25

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PointAnalyzer runs bloom detection at a single location.
type PointAnalyzer interface {
	AnalyzePoint(ctx context.Context, loc domain.Location, start, end time.Time, satellite string) (analysis.PointResult, error)
}

// Config bounds the work a single scan may do.
type Config struct {
	Workers      int
	PointTimeout time.Duration
	MaxPoints    int
}

// Scanner fans grid points out to a fixed-size worker pool.
type Scanner struct {
	analyzer PointAnalyzer
	cfg      Config
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates a Scanner. Unset config fields default to 3 workers, a 30s
// point timeout, and 100 points.
func New(analyzer PointAnalyzer, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.PointTimeout <= 0 {
		cfg.PointTimeout = 30 * time.Second
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = 100
	}
	return &Scanner{analyzer: analyzer, cfg: cfg, metrics: metrics, logger: logger}
}

// Request describes one regional scan.
type Request struct {
	BBox       orb.Bound
	Start      time.Time
	End        time.Time
	Resolution float64 // degrees; 0 means DefaultResolution
	Satellite  string

	// Progress, when set, is called after each point with the number of
	// points finished so far. Calls are serialized.
	Progress func(done, total int)
}

// Scan analyzes every grid point of the request. Points that fail or time out
// are dropped from the summary; only cancellation of ctx aborts the scan.
func (s *Scanner) Scan(ctx context.Context, req Request) (Result, error) {
	res := req.Resolution
	if res <= 0 {
		res = DefaultResolution
	}
	id := uuid.NewString()
	grid := Grid(req.BBox, res)
	base := Result{
		ID:         id,
		BBox:       bboxOf(req.BBox),
		DateRange:  analysis.Window{Start: req.Start, End: req.End},
		Resolution: res,
		GridPoints: len(grid),
	}

	logger := s.logger.With("scan_id", id)
	logger.Info("scanning region", "bbox", base.BBox, "points", len(grid), "resolution", res)

	if len(grid) > s.cfg.MaxPoints {
		base.Status = StatusError
		base.Message = fmt.Sprintf("Region too large (%d points). Please use smaller area or coarser resolution.", len(grid))
		base.Recommendation = fmt.Sprintf("Try grid_resolution >= %g degrees or smaller bbox", coarserResolution(req.BBox, s.cfg.MaxPoints))
		return base, nil
	}

	results := s.analyzeGrid(ctx, logger, grid, req)
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("scan %s: %w", id, err)
	}

	var blooms []analysis.PointResult
	analyzed := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		analyzed++
		if r.HasBloom {
			blooms = append(blooms, *r)
		}
	}
	base.AnalyzedPoints = analyzed
	logger.Info("regional scan complete", "analyzed", analyzed, "bloom_locations", len(blooms))

	return aggregate(base, blooms), nil
}

// analyzeGrid returns one slot per grid point, nil where the point failed.
func (s *Scanner) analyzeGrid(ctx context.Context, logger *slog.Logger, grid []orb.Point, req Request) []*analysis.PointResult {
	results := make([]*analysis.PointResult, len(grid))
	done := make(chan struct{}, len(grid))

	wp := workerpool.New(s.cfg.Workers)
	for i, p := range grid {
		wp.Submit(func() {
			defer func() { done <- struct{}{} }()
			if ctx.Err() != nil {
				return
			}
			results[i] = s.analyzePoint(ctx, logger, domain.LocationFromPoint(p), req)
		})
	}

	finished := 0
	for range grid {
		<-done
		finished++
		if req.Progress != nil {
			req.Progress(finished, len(grid))
		}
	}
	wp.StopWait()
	return results
}

func (s *Scanner) analyzePoint(ctx context.Context, logger *slog.Logger, loc domain.Location, req Request) *analysis.PointResult {
	pctx, cancel := context.WithTimeout(ctx, s.cfg.PointTimeout)
	defer cancel()

	r, err := s.analyzer.AnalyzePoint(pctx, loc, req.Start, req.End, req.Satellite)
	switch {
	case errors.Is(err, domain.ErrNoData):
		s.count("no_data")
		return nil
	case err != nil:
		logger.Warn("point analysis failed", "lat", loc.Lat, "lon", loc.Lon, "error", err)
		s.count("error")
		return nil
	case r.HasBloom:
		s.count("bloom")
	default:
		s.count("clear")
	}
	return &r
}

func (s *Scanner) count(outcome string) {
	if s.metrics != nil {
		s.metrics.ScanPoints.WithLabelValues(outcome).Inc()
	}
}

// Grid lays points over b every res degrees, latitude-major. Ranges are
// half-open: the maximum edges are never sampled.
func Grid(b orb.Bound, res float64) []orb.Point {
	if res <= 0 {
		return nil
	}
	lats := steps(b.Min.Lat(), b.Max.Lat(), res)
	lons := steps(b.Min.Lon(), b.Max.Lon(), res)
	out := make([]orb.Point, 0, lats*lons)
	for i := range lats {
		lat := b.Min.Lat() + float64(i)*res
		for j := range lons {
			out = append(out, orb.Point{b.Min.Lon() + float64(j)*res, lat})
		}
	}
	return out
}

// steps counts the samples of [lo, hi) at spacing res. A small tolerance keeps
// floating-point noise from adding a sample that lands on hi.
func steps(lo, hi, res float64) int {
	if hi <= lo {
		return 0
	}
	return int(math.Ceil((hi-lo)/res - 1e-9))
}

// coarserResolution suggests the smallest spacing, in 0.05 degree steps,
// that keeps the grid within maxPoints.
func coarserResolution(b orb.Bound, maxPoints int) float64 {
	for r := 0.05; ; r += 0.05 {
		r = math.Round(r*100) / 100
		if steps(b.Min.Lat(), b.Max.Lat(), r)*steps(b.Min.Lon(), b.Max.Lon(), r) <= maxPoints {
			return r
		}
	}
}

func bboxOf(b orb.Bound) [4]float64 {
	return [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}

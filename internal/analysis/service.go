// Package analysis orchestrates the request-driven bloom workflows: fetch a
// series, derive indices, detect events, then summarize, trend, or predict.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/observability"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDetectBufferKm = 10
	defaultPointBufferKm  = 5
	sceneWindowDays       = 3
	maxConcurrentYears    = 4
)

// Service runs analyses against a series source.
type Service struct {
	fetcher   domain.SeriesFetcher
	detector  *domain.Detector
	predictor *domain.Predictor
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(fetcher domain.SeriesFetcher, detector *domain.Detector, predictor *domain.Predictor, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		fetcher:   fetcher,
		detector:  detector,
		predictor: predictor,
		metrics:   metrics,
		logger:    logger,
	}
}

// Window is an inclusive date range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DetectRequest asks for the bloom events at one location over a window.
type DetectRequest struct {
	Location  domain.Location
	Start     time.Time
	End       time.Time
	BufferKm  float64 // 0 means 10 km
	Satellite string
	Threshold float64 // 0 means the detector's threshold
}

// DetectReport is the result of Detect.
type DetectReport struct {
	Status       domain.DetectionStatus `json:"status"`
	Message      string                 `json:"message,omitempty"`
	Location     domain.Location        `json:"location"`
	DateRange    Window                 `json:"date_range"`
	Satellite    string                 `json:"satellite,omitempty"`
	Note         string                 `json:"note,omitempty"`
	Observations int                    `json:"observations"`
	Events       []domain.BloomEvent    `json:"bloom_events"`
	Statistics   domain.BloomStatistics `json:"statistics"`
}

// Detect fetches the series for a window and runs bloom detection over it.
// A source with nothing for the window yields domain.ErrNoData.
func (s *Service) Detect(ctx context.Context, req DetectRequest) (DetectReport, error) {
	q := domain.SeriesQuery{
		Location:  req.Location,
		Start:     req.Start,
		End:       req.End,
		BufferKm:  orDefault(req.BufferKm, defaultDetectBufferKm),
		Satellite: req.Satellite,
	}
	payload, series, err := s.fetchSeries(ctx, q)
	if err != nil {
		return DetectReport{}, err
	}

	det := s.detector.Detect(series.Values, series.EVI, req.Threshold, series.Dates)
	if det.Status == domain.DetectionError {
		s.logger.Error("bloom detection failed",
			"lat", req.Location.Lat, "lon", req.Location.Lon, "error", det.Message)
	}
	s.countEvents(det.Events)

	return DetectReport{
		Status:       det.Status,
		Message:      det.Message,
		Location:     req.Location,
		DateRange:    Window{Start: req.Start, End: req.End},
		Satellite:    payload.Satellite,
		Note:         payload.Note,
		Observations: series.Len(),
		Events:       det.Events,
		Statistics:   domain.Statistics(s.detector, series, det.Events),
	}, nil
}

// TimeseriesRequest asks for one season's summary per year.
type TimeseriesRequest struct {
	Location  domain.Location
	Years     []int // empty means last year
	Season    domain.Season
	BufferKm  float64 // 0 means 5 km
	Satellite string
}

// TimeseriesReport holds the yearly summaries in year order and their trends.
type TimeseriesReport struct {
	Location   domain.Location        `json:"location"`
	Season     domain.Season          `json:"season"`
	Timeseries []domain.YearlySummary `json:"timeseries"`
	Trends     domain.TrendResult     `json:"trends"`
}

// Timeseries summarizes the season in every requested year and fits trends
// across them. Repeated years are fetched once. Years are fetched
// concurrently; years without data are skipped.
func (s *Service) Timeseries(ctx context.Context, req TimeseriesRequest) (TimeseriesReport, error) {
	season := domain.ParseSeason(string(req.Season))
	years := distinctYears(req.Years)
	if len(years) == 0 {
		years = []int{domain.Now().Year() - 1}
	}

	results := make([]*domain.YearlySummary, len(years))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentYears)
	for i, year := range years {
		g.Go(func() error {
			start, end := season.Window(year)
			_, series, err := s.fetchSeries(gctx, domain.SeriesQuery{
				Location:  req.Location,
				Start:     start,
				End:       end,
				BufferKm:  orDefault(req.BufferKm, defaultPointBufferKm),
				Satellite: req.Satellite,
			})
			if errors.Is(err, domain.ErrNoData) {
				s.logger.Info("no data for year, skipping", "year", year, "season", season)
				return nil
			}
			if err != nil {
				return fmt.Errorf("year %d: %w", year, err)
			}

			det := s.detector.Detect(series.Values, series.EVI, 0, series.Dates)
			if det.Status == domain.DetectionError {
				s.logger.Error("bloom detection failed", "year", year, "error", det.Message)
			}
			s.countEvents(det.Events)
			summary := domain.SummarizeYear(year, season, series, det.Events)
			results[i] = &summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TimeseriesReport{}, err
	}

	history := make([]domain.YearlySummary, 0, len(results))
	for _, r := range results {
		if r != nil {
			history = append(history, *r)
		}
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Year < history[j].Year })

	trends := domain.AnalyzeTrends(history)
	if trends.Status == domain.TrendError {
		s.logger.Warn("trend analysis failed", "error", trends.Message)
	}
	return TimeseriesReport{
		Location:   req.Location,
		Season:     season,
		Timeseries: history,
		Trends:     trends,
	}, nil
}

// PredictRequest asks for the next peak bloom at a location.
type PredictRequest struct {
	Location       domain.Location
	Years          []int
	Season         domain.Season
	VegetationType string
	CurrentDate    time.Time // zero means today
	Satellite      string
}

// PredictReport pairs a prediction with the history it was made from.
type PredictReport struct {
	Location   domain.Location        `json:"location"`
	History    []domain.YearlySummary `json:"historical_data"`
	Prediction domain.Prediction      `json:"prediction"`
}

// Predict builds the yearly history for the location and forecasts the next
// peak bloom from it.
func (s *Service) Predict(ctx context.Context, req PredictRequest) (PredictReport, error) {
	ts, err := s.Timeseries(ctx, TimeseriesRequest{
		Location:  req.Location,
		Years:     req.Years,
		Season:    req.Season,
		Satellite: req.Satellite,
	})
	if err != nil {
		return PredictReport{}, err
	}

	pred := s.predictor.PredictNextBloom(ts.Timeseries, req.Location, req.VegetationType, req.CurrentDate)
	if s.metrics != nil {
		s.metrics.Predictions.WithLabelValues(string(pred.Status)).Inc()
	}
	switch pred.Status {
	case domain.PredictionError:
		s.logger.Error("bloom prediction failed", "lat", req.Location.Lat, "lon", req.Location.Lon, "error", pred.Message)
	case domain.PredictionSuccess:
		s.logger.Info("bloom predicted",
			"lat", req.Location.Lat, "lon", req.Location.Lon,
			"date", pred.PredictedDate.Format(time.DateOnly),
			"confidence", pred.Confidence)
	}
	return PredictReport{Location: req.Location, History: ts.Timeseries, Prediction: pred}, nil
}

// IndexStatistics describes the spread of NDVI over a scene.
type IndexStatistics struct {
	Min float64 `json:"ndvi_min"`
	Max float64 `json:"ndvi_max"`
	Std float64 `json:"ndvi_std"`
}

// IndicesReport describes the vegetation indices of one acquisition.
type IndicesReport struct {
	Location       domain.Location                    `json:"location"`
	Date           time.Time                          `json:"date"`
	SceneDate      time.Time                          `json:"scene_date"`
	Satellite      string                             `json:"satellite,omitempty"`
	NDVI           float64                            `json:"ndvi"`
	EVI            float64                            `json:"evi"`
	Statistics     IndexStatistics                    `json:"statistics"`
	Classification map[domain.VegetationClass]float64 `json:"classification"`
	Signature      domain.Signature                   `json:"spectral_signature"`
}

// CalculateIndices finds the acquisition nearest to date within three days
// either side and reports its indices. Payloads that carry only a derived
// series are reduced over the observations of the window.
func (s *Service) CalculateIndices(ctx context.Context, loc domain.Location, date time.Time) (IndicesReport, error) {
	payload, err := s.fetcher.Fetch(ctx, domain.SeriesQuery{
		Location: loc,
		Start:    date.AddDate(0, 0, -sceneWindowDays),
		End:      date.AddDate(0, 0, sceneWindowDays+1),
		BufferKm: defaultPointBufferKm,
	})
	if err != nil {
		return IndicesReport{}, err
	}
	if payload.Empty() {
		return IndicesReport{}, domain.ErrNoData
	}

	report := IndicesReport{Location: loc, Date: date, Satellite: payload.Satellite}
	var ndvi, evi []float64
	if sc, ok := nearestScene(payload.Scenes, date); ok {
		ndvi = domain.NDVI(sc.Bands).Values()
		evi = domain.EVI(sc.Bands).Values()
		report.SceneDate = sc.Date
	}
	if len(ndvi) == 0 {
		series := domain.IndexSeries(payload)
		ndvi, evi = series.Values, series.EVI
		if series.Dated() {
			report.SceneDate = series.Dates[len(series.Dates)-1]
		}
	}
	if len(ndvi) == 0 {
		return IndicesReport{}, domain.ErrNoData
	}
	if len(evi) == 0 {
		evi = domain.ApproximateEVI(ndvi)
	}

	st := domain.Summarize(ndvi)
	report.NDVI = st.Mean
	report.EVI = domain.Summarize(evi).Mean
	report.Statistics = IndexStatistics{Min: st.Min, Max: st.Max, Std: st.Std}
	report.Classification = domain.ClassifyVegetation(ndvi)
	report.Signature = domain.SpectralSignature(ndvi)
	return report, nil
}

// PointResult is the bloom summary of one grid point.
type PointResult struct {
	Lat         float64          `json:"lat"`
	Lon         float64          `json:"lon"`
	HasBloom    bool             `json:"has_bloom"`
	BloomCount  int              `json:"bloom_count"`
	PeakNDVI    float64          `json:"peak_ndvi"`
	PeakDate    *time.Time       `json:"peak_date,omitempty"`
	Intensity   domain.Intensity `json:"intensity"`
	AverageNDVI float64          `json:"average_ndvi"`
	Satellite   string           `json:"satellite,omitempty"`
	Note        string           `json:"note,omitempty"`
	Demo        bool             `json:"demo_data,omitempty"`
}

// AnalyzePoint runs detection at one location with a 5 km buffer.
func (s *Service) AnalyzePoint(ctx context.Context, loc domain.Location, start, end time.Time, satellite string) (PointResult, error) {
	payload, series, err := s.fetchSeries(ctx, domain.SeriesQuery{
		Location:  loc,
		Start:     start,
		End:       end,
		BufferKm:  defaultPointBufferKm,
		Satellite: satellite,
	})
	if err != nil {
		return PointResult{}, err
	}

	det := s.detector.Detect(series.Values, series.EVI, 0, series.Dates)
	if det.Status == domain.DetectionError {
		return PointResult{}, errors.New(det.Message)
	}
	mean := domain.Summarize(series.Values).Mean
	res := PointResult{
		Lat:         loc.Lat,
		Lon:         loc.Lon,
		BloomCount:  len(det.Events),
		Intensity:   domain.IntensityFor(mean),
		AverageNDVI: mean,
		Satellite:   payload.Satellite,
		Note:        payload.Note,
		Demo:        payload.Demo,
	}
	if peak, ok := domain.PeakBloom(det.Events); ok {
		res.HasBloom = true
		res.PeakNDVI = peak.PeakValue
		res.PeakDate = peak.PeakDate
	}
	return res, nil
}

// fetchSeries fetches a window and derives its index series. An empty series
// is reported as domain.ErrNoData.
func (s *Service) fetchSeries(ctx context.Context, q domain.SeriesQuery) (domain.SatellitePayload, domain.VegetationSeries, error) {
	payload, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		return payload, domain.VegetationSeries{}, err
	}
	series := domain.IndexSeries(payload)
	if series.Len() == 0 {
		return payload, series, domain.ErrNoData
	}
	return payload, series, nil
}

func (s *Service) countEvents(events []domain.BloomEvent) {
	if s.metrics == nil {
		return
	}
	for _, ev := range events {
		s.metrics.BloomEventsDetected.WithLabelValues(string(ev.Kind)).Inc()
	}
}

// nearestScene returns the scene closest to date; the later scene wins ties.
func nearestScene(scenes []domain.Scene, date time.Time) (domain.Scene, bool) {
	if len(scenes) == 0 {
		return domain.Scene{}, false
	}
	best := 0
	for i := 1; i < len(scenes); i++ {
		d, bd := absDuration(scenes[i].Date.Sub(date)), absDuration(scenes[best].Date.Sub(date))
		if d < bd || (d == bd && scenes[i].Date.After(scenes[best].Date)) {
			best = i
		}
	}
	return scenes[best], true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// distinctYears drops repeated years, keeping first occurrences in order.
func distinctYears(years []int) []int {
	seen := make(map[int]bool, len(years))
	out := make([]int, 0, len(years))
	for _, y := range years {
		if seen[y] {
			continue
		}
		seen[y] = true
		out = append(out, y)
	}
	return out
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

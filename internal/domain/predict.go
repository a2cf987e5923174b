package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// PredictionStatus tags the outcome of a prediction.
type PredictionStatus string

const (
	PredictionSuccess          PredictionStatus = "success"
	PredictionInsufficientData PredictionStatus = "insufficient_data"
	PredictionError            PredictionStatus = "error"
)

// Method names one sub-predictor of the ensemble.
type Method string

const (
	MethodStatistical   Method = "statistical"
	MethodPatternBased  Method = "pattern_based"
	MethodTrendAdjusted Method = "trend_adjusted"
)

// DateRange brackets a predicted date by its uncertainty.
type DateRange struct {
	Earliest   time.Time `json:"earliest"`
	MostLikely time.Time `json:"most_likely"`
	Latest     time.Time `json:"latest"`
}

func rangeAround(d time.Time, days int) DateRange {
	return DateRange{
		Earliest:   d.AddDate(0, 0, -days),
		MostLikely: d,
		Latest:     d.AddDate(0, 0, days),
	}
}

// TimingTrend describes a fitted shift in bloom day-of-year per year.
type TimingTrend struct {
	Direction      string  `json:"direction"` // earlier or later
	DaysPerYear    float64 `json:"rate_days_per_year"`
	Magnitude      string  `json:"magnitude"` // weak, moderate, strong
	RSquared       float64 `json:"r_squared"`
	Correlation    float64 `json:"correlation"`
	Interpretation string  `json:"interpretation"`
}

// MethodPrediction is one sub-method's estimate.
type MethodPrediction struct {
	Method            Method       `json:"method"`
	Date              time.Time    `json:"date"`
	Confidence        float64      `json:"confidence"`
	Weight            float64      `json:"weight"`
	UncertaintyDays   int          `json:"uncertainty_days"`
	DateRange         DateRange    `json:"date_range"`
	PredictedPeakNDVI float64      `json:"predicted_peak_ndvi"`
	AdjustmentDays    int          `json:"adjustment_applied,omitempty"`
	AdjustmentReason  string       `json:"adjustment_reason,omitempty"`
	Trend             *TimingTrend `json:"trend,omitempty"`
	Note              string       `json:"note,omitempty"`
}

// PredictionMetadata records the inputs a prediction was based on.
type PredictionMetadata struct {
	BasedOnYears         int         `json:"based_on_years"`
	HistoricalBloomDates []time.Time `json:"historical_bloom_dates"`
	CurrentDate          time.Time   `json:"current_date"`
	Location             Location    `json:"location"`
	VegetationType       string      `json:"vegetation_type,omitempty"`
}

// Prediction is the ensemble forecast of the next peak bloom. Only Status,
// Message, and Confidence are set unless Status is success.
type Prediction struct {
	Status          PredictionStatus    `json:"status"`
	Message         string              `json:"message,omitempty"`
	PredictedDate   *time.Time          `json:"predicted_date,omitempty"`
	Confidence      float64             `json:"confidence"`
	ConfidenceLevel string              `json:"confidence_level,omitempty"`
	UncertaintyDays int                 `json:"uncertainty_days,omitempty"`
	DateRange       *DateRange          `json:"date_range,omitempty"`
	Methods         []MethodPrediction  `json:"prediction_methods,omitempty"`
	Recommendations []string            `json:"recommendations,omitempty"`
	Metadata        *PredictionMetadata `json:"metadata,omitempty"`
}

// MethodWeights assigns each sub-method its share of the ensemble.
type MethodWeights struct {
	Statistical   float64
	PatternBased  float64
	TrendAdjusted float64
}

func (w MethodWeights) of(m Method) float64 {
	switch m {
	case MethodStatistical:
		return w.Statistical
	case MethodPatternBased:
		return w.PatternBased
	default:
		return w.TrendAdjusted
	}
}

// VegetationShift moves pattern-based predictions for vegetation labels that
// contain Keyword.
type VegetationShift struct {
	Keyword string
	Days    int
}

// PredictorConfig holds the ensemble constants.
type PredictorConfig struct {
	Weights          MethodWeights
	RichWeights      MethodWeights // used with at least RichHistoryYears summaries
	RichHistoryYears int
	ReferenceDate    time.Time
	Shifts           []VegetationShift // first match wins
}

// DefaultPredictorConfig returns the standard weights 0.40/0.35/0.25,
// 0.30/0.35/0.35 with five or more years, and the desert/tree shifts.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		Weights:          MethodWeights{Statistical: 0.40, PatternBased: 0.35, TrendAdjusted: 0.25},
		RichWeights:      MethodWeights{Statistical: 0.30, PatternBased: 0.35, TrendAdjusted: 0.35},
		RichHistoryYears: 5,
		ReferenceDate:    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		Shifts: []VegetationShift{
			{Keyword: "desert", Days: -5},
			{Keyword: "tree", Days: -7},
		},
	}
}

// Predictor forecasts the next bloom from yearly summaries. It is stateless
// apart from its configuration.
type Predictor struct {
	cfg PredictorConfig
}

// NewPredictor creates a Predictor with the given configuration.
func NewPredictor(cfg PredictorConfig) *Predictor {
	return &Predictor{cfg: cfg}
}

// bloomPeak is one historical dated peak.
type bloomPeak struct {
	date  time.Time
	value float64
}

// PredictNextBloom combines three sub-methods into one forecast. A zero
// current date means now. Faults are reported as an error status.
func (p *Predictor) PredictNextBloom(history []YearlySummary, loc Location, vegetationType string, current time.Time) (pred Prediction) {
	defer func() {
		if r := recover(); r != nil {
			pred = Prediction{Status: PredictionError, Message: fmt.Sprintf("bloom prediction failed: %v", r)}
		}
	}()

	if current.IsZero() {
		current = clock.Now()
	}
	current = truncateDay(current)

	if len(history) == 0 {
		return Prediction{Status: PredictionInsufficientData, Message: "No historical bloom data available for prediction"}
	}

	var peaks []bloomPeak
	for _, year := range history {
		for _, ev := range year.Events {
			if ev.PeakDate != nil {
				peaks = append(peaks, bloomPeak{date: truncateDay(*ev.PeakDate), value: ev.PeakValue})
			}
		}
	}
	if len(peaks) < 2 {
		return Prediction{Status: PredictionInsufficientData, Message: "Need at least 2 years of historical data for prediction"}
	}

	methods := []MethodPrediction{
		p.statistical(peaks, current),
		p.patternBased(peaks, current, vegetationType),
		p.trendAdjusted(peaks, current),
	}
	pred = p.ensemble(methods, len(history))

	recent := make([]time.Time, 0, 5)
	for _, pk := range peaks[max(len(peaks)-5, 0):] {
		recent = append(recent, pk.date)
	}
	pred.Metadata = &PredictionMetadata{
		BasedOnYears:         len(history),
		HistoricalBloomDates: recent,
		CurrentDate:          current,
		Location:             loc,
		VegetationType:       vegetationType,
	}
	return pred
}

// statistical averages the day-of-year of every historical peak.
func (p *Predictor) statistical(peaks []bloomPeak, current time.Time) MethodPrediction {
	doys, months, values := peakSeries(peaks)

	avgDoy := int(mean(doys))
	uncertainty := 14
	if len(doys) > 1 {
		uncertainty = int(popStd(doys))
	}
	year := targetYear(current, int(mean(months)))
	date := dayOfYear(year, avgDoy)

	return MethodPrediction{
		Method:            MethodStatistical,
		Date:              date,
		Confidence:        math.Min(0.6+0.05*float64(len(peaks)), 0.85),
		UncertaintyDays:   uncertainty,
		DateRange:         rangeAround(date, uncertainty),
		PredictedPeakNDVI: mean(values),
	}
}

// patternBased takes the median day-of-year of each year's strongest peak and
// applies the vegetation shift.
func (p *Predictor) patternBased(peaks []bloomPeak, current time.Time, vegetationType string) MethodPrediction {
	strongest := map[int]bloomPeak{}
	var order []int
	for _, pk := range peaks {
		y := pk.date.Year()
		best, seen := strongest[y]
		if !seen {
			order = append(order, y)
		}
		if !seen || pk.value > best.value {
			strongest[y] = pk
		}
	}
	primary := make([]bloomPeak, 0, len(order))
	for _, y := range order {
		primary = append(primary, strongest[y])
	}

	doys, months, _ := peakSeries(primary)
	_, _, allValues := peakSeries(peaks)

	adjustment, reason := p.shiftFor(vegetationType)
	year := targetYear(current, int(median(months)))
	date := dayOfYear(year, int(median(doys))+adjustment)

	uncertainty := 10
	if len(doys) > 1 {
		uncertainty = int(popStd(doys))
	}
	return MethodPrediction{
		Method:            MethodPatternBased,
		Date:              date,
		Confidence:        math.Min(0.65+0.05*float64(len(primary)), 0.88),
		UncertaintyDays:   uncertainty,
		DateRange:         rangeAround(date, uncertainty),
		PredictedPeakNDVI: median(allValues),
		AdjustmentDays:    adjustment,
		AdjustmentReason:  reason,
	}
}

// shiftFor matches shift keywords case-insensitively.
func (p *Predictor) shiftFor(vegetationType string) (int, string) {
	if vegetationType == "" {
		return 0, "None"
	}
	label := strings.ToLower(vegetationType)
	reason := "Climate trend adjustment for " + vegetationType
	for _, s := range p.cfg.Shifts {
		if strings.Contains(label, s.Keyword) {
			return s.Days, reason
		}
	}
	return 0, reason
}

// trendAdjusted regresses day-of-year on year and extrapolates to the target
// year. With fewer than three distinct years it falls back to statistical.
func (p *Predictor) trendAdjusted(peaks []bloomPeak, current time.Time) MethodPrediction {
	fallback := func() MethodPrediction {
		m := p.statistical(peaks, current)
		m.Method = MethodTrendAdjusted
		m.Note = "Fewer than 3 distinct years; statistical estimate used"
		return m
	}
	if len(peaks) < 3 {
		return fallback()
	}

	distinct := map[int]struct{}{}
	years := make([]float64, len(peaks))
	for i, pk := range peaks {
		distinct[pk.date.Year()] = struct{}{}
		years[i] = float64(pk.date.Year())
	}
	if len(distinct) < 3 {
		return fallback()
	}

	doys, months, values := peakSeries(peaks)
	intercept, slope := stat.LinearRegression(years, doys, nil, false)
	r := stat.Correlation(years, doys, nil)
	if math.IsNaN(r) {
		r = 0
	}

	year := targetYear(current, int(mean(months)))
	date := dayOfYear(year, int(slope*float64(year)+intercept))
	uncertainty := int(popStd(doys))

	direction := "later"
	if slope < 0 {
		direction = "earlier"
	}
	return MethodPrediction{
		Method:            MethodTrendAdjusted,
		Date:              date,
		Confidence:        math.Min(0.7+0.2*math.Abs(r), 0.92),
		UncertaintyDays:   uncertainty,
		DateRange:         rangeAround(date, uncertainty),
		PredictedPeakNDVI: mean(values),
		Trend: &TimingTrend{
			Direction:      direction,
			DaysPerYear:    slope,
			Magnitude:      shiftMagnitude(slope),
			RSquared:       r * r,
			Correlation:    r,
			Interpretation: interpretTimingTrend(slope, r*r),
		},
	}
}

func shiftMagnitude(daysPerYear float64) string {
	switch a := math.Abs(daysPerYear); {
	case a < 0.5:
		return "weak"
	case a < 2:
		return "moderate"
	default:
		return "strong"
	}
}

func interpretTimingTrend(daysPerYear, r2 float64) string {
	switch {
	case r2 < 0.3:
		return "No clear trend - blooms occur at variable times each year"
	case math.Abs(daysPerYear) < 0.5:
		return "Stable bloom timing - no significant shift detected"
	case daysPerYear < -2:
		return "Strong trend: Blooms occurring significantly earlier each year (likely climate impact)"
	case daysPerYear < 0:
		return "Moderate trend: Blooms shifting slightly earlier (possible climate signal)"
	case daysPerYear > 2:
		return "Blooms occurring significantly later each year (investigate cause)"
	default:
		return "Slight trend toward later blooms"
	}
}

func peakSeries(peaks []bloomPeak) (doys, months, values []float64) {
	doys = make([]float64, len(peaks))
	months = make([]float64, len(peaks))
	values = make([]float64, len(peaks))
	for i, pk := range peaks {
		doys[i] = float64(pk.date.YearDay())
		months[i] = float64(pk.date.Month())
		values[i] = pk.value
	}
	return doys, months, values
}

// targetYear is the current year while the typical bloom month is still
// ahead, else the next one.
func targetYear(current time.Time, bloomMonth int) int {
	if int(current.Month()) < bloomMonth {
		return current.Year()
	}
	return current.Year() + 1
}

func dayOfYear(year, doy int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func mean(v []float64) float64 {
	m, _ := stats.Mean(v)
	return m
}

func median(v []float64) float64 {
	m, _ := stats.Median(v)
	return m
}

func popStd(v []float64) float64 {
	s, _ := stats.StandardDeviationPopulation(v)
	return s
}

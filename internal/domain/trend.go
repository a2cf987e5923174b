package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// TrendStatus tags the outcome of a trend analysis.
type TrendStatus string

const (
	TrendOK               TrendStatus = "ok"
	TrendNoData           TrendStatus = "no_data"
	TrendInsufficientData TrendStatus = "insufficient_data"
	TrendError            TrendStatus = "error"
)

// TrendDirection is the sign of a fitted slope.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
)

// LinearTrend is an ordinary least-squares fit of a metric against year.
type LinearTrend struct {
	Slope          float64        `json:"slope"`
	Intercept      float64        `json:"intercept"`
	RSquared       float64        `json:"r_squared"`
	Direction      TrendDirection `json:"direction"`
	Interpretation string         `json:"interpretation,omitempty"`
}

// BloomFrequency describes bloom-event counts across years.
type BloomFrequency struct {
	Mean float64 `json:"avg_blooms_per_year"`
	Min  int     `json:"min_blooms"`
	Max  int     `json:"max_blooms"`
}

// YearChange is the percentage change in peak value between two consecutive
// summaries. PercentChange is nil when the earlier peak is 0.
type YearChange struct {
	FromYear      int      `json:"from_year"`
	ToYear        int      `json:"to_year"`
	PercentChange *float64 `json:"percent_change,omitempty"`
}

// TrendResult is the outcome of AnalyzeTrends.
type TrendResult struct {
	Status       TrendStatus     `json:"status"`
	Message      string          `json:"message,omitempty"`
	Years        int             `json:"years_analyzed"`
	PeakTrend    *LinearTrend    `json:"peak_ndvi_trend,omitempty"`
	AverageTrend *LinearTrend    `json:"avg_ndvi_trend,omitempty"`
	Frequency    *BloomFrequency `json:"bloom_frequency,omitempty"`
	YearOverYear []YearChange    `json:"year_over_year_changes,omitempty"`
}

// AnalyzeTrends fits peak and average index values against year. It needs at
// least two summaries with distinct years.
func AnalyzeTrends(history []YearlySummary) (res TrendResult) {
	defer func() {
		if r := recover(); r != nil {
			res = TrendResult{Status: TrendError, Years: len(history), Message: fmt.Sprintf("trend analysis failed: %v", r)}
		}
	}()

	switch len(history) {
	case 0:
		return TrendResult{Status: TrendNoData, Message: "No data provided"}
	case 1:
		return TrendResult{Status: TrendInsufficientData, Years: 1, Message: "At least 2 years of data are required for trend analysis"}
	}

	sorted := append([]YearlySummary(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	years := make([]float64, len(sorted))
	peaks := make([]float64, len(sorted))
	avgs := make([]float64, len(sorted))
	counts := make([]float64, len(sorted))
	for i, s := range sorted {
		if i > 0 && s.Year == sorted[i-1].Year {
			return TrendResult{
				Status:  TrendError,
				Years:   len(sorted),
				Message: fmt.Sprintf("Years must be distinct for trend analysis (%d repeated)", s.Year),
			}
		}
		years[i] = float64(s.Year)
		peaks[i] = s.PeakNDVI
		avgs[i] = s.AverageNDVI
		counts[i] = float64(len(s.Events))
	}

	peakTrend := fitTrend(years, peaks)
	peakTrend.Interpretation = interpretIntensityTrend(peakTrend.Slope, peakTrend.RSquared)
	avgTrend := fitTrend(years, avgs)

	data := stats.Float64Data(counts)
	mean, _ := data.Mean()
	lo, _ := data.Min()
	hi, _ := data.Max()

	return TrendResult{
		Status:       TrendOK,
		Years:        len(sorted),
		PeakTrend:    &peakTrend,
		AverageTrend: &avgTrend,
		Frequency:    &BloomFrequency{Mean: mean, Min: int(lo), Max: int(hi)},
		YearOverYear: yearOverYear(sorted),
	}
}

// fitTrend regresses y on x. A constant y has r² 0.
func fitTrend(x, y []float64) LinearTrend {
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	dir := TrendDecreasing
	if beta > 0 {
		dir = TrendIncreasing
	}
	return LinearTrend{Slope: beta, Intercept: alpha, RSquared: r2, Direction: dir}
}

func interpretIntensityTrend(slope, r2 float64) string {
	switch {
	case r2 < 0.3:
		return "No clear trend (low correlation)"
	case math.Abs(slope) < 0.01:
		return "Stable bloom intensity"
	case slope > 0.05:
		return "Strong increase in bloom intensity - may indicate favorable conditions"
	case slope > 0:
		return "Moderate increase in bloom intensity"
	case slope < -0.05:
		return "Strong decrease in bloom intensity - may indicate stress or climate change"
	default:
		return "Moderate decrease in bloom intensity"
	}
}

func yearOverYear(sorted []YearlySummary) []YearChange {
	out := make([]YearChange, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		c := YearChange{FromYear: sorted[i-1].Year, ToYear: sorted[i].Year}
		if prev := sorted[i-1].PeakNDVI; prev != 0 {
			pct := (sorted[i].PeakNDVI - prev) / prev * 100
			c.PercentChange = &pct
		}
		out = append(out, c)
	}
	return out
}

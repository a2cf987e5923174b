package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLocation = Location{Lat: 34.7, Lon: -118.1}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func peakEvent(date time.Time, value float64) BloomEvent {
	return BloomEvent{Kind: KindPeakBloom, PeakValue: value, PeakDate: &date}
}

func historyOf(events ...BloomEvent) []YearlySummary {
	out := make([]YearlySummary, 0, len(events))
	for _, ev := range events {
		out = append(out, YearlySummary{
			Year:     ev.PeakDate.Year(),
			Season:   SeasonSpring,
			Events:   []BloomEvent{ev},
			PeakNDVI: ev.PeakValue,
		})
	}
	return out
}

func testPredictor() *Predictor {
	return NewPredictor(DefaultPredictorConfig())
}

func TestPredictNextBloom_InsufficientData(t *testing.T) {
	p := testPredictor()

	t.Run("no history", func(t *testing.T) {
		pred := p.PredictNextBloom(nil, testLocation, "", day(2025, 1, 10))
		assert.Equal(t, PredictionInsufficientData, pred.Status)
		assert.Zero(t, pred.Confidence)
		assert.Nil(t, pred.PredictedDate)
	})

	t.Run("one dated peak", func(t *testing.T) {
		hist := historyOf(peakEvent(day(2024, 4, 15), 0.7))
		hist = append(hist, YearlySummary{Year: 2023, Events: []BloomEvent{{PeakValue: 0.6}}})
		pred := p.PredictNextBloom(hist, testLocation, "", day(2025, 1, 10))
		assert.Equal(t, PredictionInsufficientData, pred.Status)
		assert.Zero(t, pred.Confidence)
		assert.Nil(t, pred.PredictedDate)
		assert.Nil(t, pred.Metadata)
	})
}

func TestPredictNextBloom_ConsistentApril(t *testing.T) {
	hist := historyOf(
		peakEvent(day(2020, 4, 15), 0.70),
		peakEvent(day(2021, 4, 15), 0.72),
		peakEvent(day(2022, 4, 15), 0.68),
		peakEvent(day(2023, 4, 15), 0.74),
		peakEvent(day(2024, 4, 15), 0.71),
	)

	pred := testPredictor().PredictNextBloom(hist, testLocation, "", day(2025, 1, 10))
	require.Equal(t, PredictionSuccess, pred.Status)
	require.NotNil(t, pred.PredictedDate)

	target := day(2025, 4, 15)
	assert.WithinDuration(t, target, *pred.PredictedDate, 3*24*time.Hour)
	assert.GreaterOrEqual(t, pred.Confidence, 0.5)
	assert.GreaterOrEqual(t, pred.UncertaintyDays, 7)
	assert.Equal(t, ConfidenceLevel(pred.Confidence), pred.ConfidenceLevel)

	require.NotNil(t, pred.DateRange)
	assert.Equal(t, *pred.PredictedDate, pred.DateRange.MostLikely)
	assert.Equal(t, pred.PredictedDate.AddDate(0, 0, -pred.UncertaintyDays), pred.DateRange.Earliest)

	require.Len(t, pred.Methods, 3)
	weights := map[Method]float64{}
	for _, m := range pred.Methods {
		weights[m.Method] = m.Weight
	}
	assert.Equal(t, map[Method]float64{
		MethodStatistical:   0.30,
		MethodPatternBased:  0.35,
		MethodTrendAdjusted: 0.35,
	}, weights, "five years of history use the rich weights")

	require.NotNil(t, pred.Metadata)
	assert.Equal(t, 5, pred.Metadata.BasedOnYears)
	assert.Len(t, pred.Metadata.HistoricalBloomDates, 5)
	assert.Equal(t, testLocation, pred.Metadata.Location)
	assert.NotEmpty(t, pred.Recommendations)
}

func TestPredictNextBloom_DefaultWeightsWithShortHistory(t *testing.T) {
	hist := historyOf(
		peakEvent(day(2022, 4, 10), 0.6),
		peakEvent(day(2023, 4, 20), 0.8),
	)
	pred := testPredictor().PredictNextBloom(hist, testLocation, "", day(2024, 6, 1))
	require.Equal(t, PredictionSuccess, pred.Status)
	for _, m := range pred.Methods {
		switch m.Method {
		case MethodStatistical:
			assert.Equal(t, 0.40, m.Weight)
		case MethodPatternBased:
			assert.Equal(t, 0.35, m.Weight)
		case MethodTrendAdjusted:
			assert.Equal(t, 0.25, m.Weight)
		}
	}
	assert.Equal(t, 2025, pred.PredictedDate.Year(), "June is past the April bloom month")
}

func TestPredictNextBloom_DefaultsCurrentDateToClock(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.January, 10, 15, 4, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	hist := historyOf(
		peakEvent(day(2023, 4, 12), 0.6),
		peakEvent(day(2024, 4, 18), 0.8),
	)
	pred := testPredictor().PredictNextBloom(hist, testLocation, "", time.Time{})
	require.NotNil(t, pred.Metadata)
	assert.Equal(t, day(2025, 1, 10), pred.Metadata.CurrentDate)
	assert.Equal(t, 2025, pred.PredictedDate.Year())
}

func TestPredictNextBloom_KeepsLastFiveDates(t *testing.T) {
	var events []BloomEvent
	for y := 2017; y <= 2023; y++ {
		events = append(events, peakEvent(day(y, 4, 1), 0.6))
	}
	pred := testPredictor().PredictNextBloom(historyOf(events...), testLocation, "", day(2024, 1, 1))
	require.NotNil(t, pred.Metadata)
	require.Len(t, pred.Metadata.HistoricalBloomDates, 5)
	assert.Equal(t, day(2019, 4, 1), pred.Metadata.HistoricalBloomDates[0])
	assert.Equal(t, day(2023, 4, 1), pred.Metadata.HistoricalBloomDates[4])
}

func TestPredictNextBloom_FaultBecomesErrorStatus(t *testing.T) {
	var p *Predictor // never constructed
	history := historyOf(peakEvent(day(2022, 4, 10), 0.6), peakEvent(day(2023, 4, 10), 0.7))

	pred := p.PredictNextBloom(history, testLocation, "desert shrub", day(2024, 1, 15))
	assert.Equal(t, PredictionError, pred.Status)
	assert.Contains(t, pred.Message, "bloom prediction failed")
	assert.Zero(t, pred.Confidence)
	assert.Nil(t, pred.PredictedDate)
	assert.Nil(t, pred.Metadata)
}

func TestStatisticalMethod(t *testing.T) {
	peaks := []bloomPeak{
		{date: day(2021, 4, 10), value: 0.6}, // doy 100
		{date: day(2022, 4, 20), value: 0.8}, // doy 110
	}
	m := testPredictor().statistical(peaks, day(2023, 6, 1))

	assert.Equal(t, MethodStatistical, m.Method)
	assert.Equal(t, day(2024, 4, 14), m.Date, "doy 105 of a leap year")
	assert.Equal(t, 5, m.UncertaintyDays)
	assert.InDelta(t, 0.7, m.Confidence, 1e-9)
	assert.InDelta(t, 0.7, m.PredictedPeakNDVI, 1e-9)
	assert.Equal(t, day(2024, 4, 9), m.DateRange.Earliest)
	assert.Equal(t, day(2024, 4, 19), m.DateRange.Latest)
}

func TestStatisticalMethod_CurrentYearWhenBloomAhead(t *testing.T) {
	peaks := []bloomPeak{
		{date: day(2021, 4, 10), value: 0.6},
		{date: day(2022, 4, 20), value: 0.8},
	}
	m := testPredictor().statistical(peaks, day(2023, 2, 1))
	assert.Equal(t, 2023, m.Date.Year())
}

func TestPatternBasedMethod(t *testing.T) {
	peaks := []bloomPeak{
		{date: day(2021, 4, 10), value: 0.6},
		{date: day(2021, 5, 30), value: 0.4}, // weaker same-year peak is ignored
		{date: day(2022, 4, 20), value: 0.8},
	}
	p := testPredictor()

	tests := []struct {
		vegetation string
		wantDate   time.Time
		wantAdjust int
		wantReason string
	}{
		{"", day(2024, 4, 14), 0, "None"},
		{"desert_shrub", day(2024, 4, 9), -5, "Climate trend adjustment for desert_shrub"},
		{"oak tree", day(2024, 4, 7), -7, "Climate trend adjustment for oak tree"},
		{"Desert Wildflower", day(2024, 4, 9), -5, "Climate trend adjustment for Desert Wildflower"},
		{"grassland", day(2024, 4, 14), 0, "Climate trend adjustment for grassland"},
	}
	for _, tt := range tests {
		t.Run(tt.vegetation, func(t *testing.T) {
			m := p.patternBased(peaks, day(2023, 6, 1), tt.vegetation)
			assert.Equal(t, tt.wantDate, m.Date)
			assert.Equal(t, tt.wantAdjust, m.AdjustmentDays)
			assert.Equal(t, tt.wantReason, m.AdjustmentReason)
			assert.InDelta(t, 0.75, m.Confidence, 1e-9)
			assert.Equal(t, 5, m.UncertaintyDays)
			assert.InDelta(t, 0.6, m.PredictedPeakNDVI, 1e-9)
		})
	}
}

func TestTrendAdjustedMethod(t *testing.T) {
	p := testPredictor()

	t.Run("falls back with too few years", func(t *testing.T) {
		peaks := []bloomPeak{
			{date: day(2021, 4, 10), value: 0.6},
			{date: day(2022, 4, 20), value: 0.8},
			{date: day(2022, 5, 1), value: 0.5},
		}
		m := p.trendAdjusted(peaks, day(2023, 6, 1))
		stat := p.statistical(peaks, day(2023, 6, 1))
		assert.Equal(t, MethodTrendAdjusted, m.Method)
		assert.Equal(t, stat.Date, m.Date)
		assert.NotEmpty(t, m.Note)
		assert.Nil(t, m.Trend)
	})

	t.Run("earlier each year", func(t *testing.T) {
		peaks := []bloomPeak{
			{date: day(2020, 4, 19), value: 0.6}, // doy 110
			{date: day(2021, 4, 15), value: 0.7}, // doy 105
			{date: day(2022, 4, 10), value: 0.8}, // doy 100
		}
		m := p.trendAdjusted(peaks, day(2023, 1, 15))
		require.NotNil(t, m.Trend)
		assert.Equal(t, "earlier", m.Trend.Direction)
		assert.Equal(t, "strong", m.Trend.Magnitude)
		assert.InDelta(t, -5, m.Trend.DaysPerYear, 1e-6)
		assert.InDelta(t, 1, m.Trend.RSquared, 1e-9)
		assert.InDelta(t, 0.9, m.Confidence, 1e-9)
		assert.Equal(t, "Strong trend: Blooms occurring significantly earlier each year (likely climate impact)", m.Trend.Interpretation)
		assert.WithinDuration(t, day(2023, 4, 5), m.Date, 24*time.Hour)
	})
}

func TestShiftMagnitude(t *testing.T) {
	assert.Equal(t, "weak", shiftMagnitude(0.49))
	assert.Equal(t, "moderate", shiftMagnitude(0.5))
	assert.Equal(t, "moderate", shiftMagnitude(-1.9))
	assert.Equal(t, "strong", shiftMagnitude(2))
}

func TestInterpretTimingTrend(t *testing.T) {
	tests := []struct {
		slope, r2 float64
		want      string
	}{
		{-3, 0.1, "No clear trend - blooms occur at variable times each year"},
		{0.2, 0.8, "Stable bloom timing - no significant shift detected"},
		{-3, 0.8, "Strong trend: Blooms occurring significantly earlier each year (likely climate impact)"},
		{-1, 0.8, "Moderate trend: Blooms shifting slightly earlier (possible climate signal)"},
		{3, 0.8, "Blooms occurring significantly later each year (investigate cause)"},
		{1, 0.8, "Slight trend toward later blooms"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, interpretTimingTrend(tt.slope, tt.r2))
	}
}

func TestConfidenceLevel(t *testing.T) {
	assert.Equal(t, "Very High", ConfidenceLevel(0.80))
	assert.Equal(t, "High", ConfidenceLevel(0.65))
	assert.Equal(t, "Moderate", ConfidenceLevel(0.50))
	assert.Equal(t, "Low", ConfidenceLevel(0.35))
	assert.Equal(t, "Very Low", ConfidenceLevel(0.34))
}

func TestRecommendations(t *testing.T) {
	t.Run("confident and tight", func(t *testing.T) {
		got := Recommendations(day(2025, 4, 15), 0.8, 7)
		assert.Equal(t, []string{
			"Begin monitoring from 2025-03-25 (21 days before predicted bloom)",
			"High confidence prediction - suitable for planning activities",
			"Consider advance logistics preparation",
			"Low uncertainty (±7 days) - reliable timeframe",
			"Validate prediction with ground observations",
			"Update prediction as season approaches",
		}, got)
	})

	t.Run("moderate confidence, moderate spread", func(t *testing.T) {
		got := Recommendations(day(2025, 4, 15), 0.6, 15)
		assert.Contains(t, got, "Moderate confidence - maintain flexible planning")
		assert.Contains(t, got, "Monitor weather conditions closely")
		assert.Contains(t, got, "Moderate uncertainty (±15 days) - check bi-weekly")
	})

	t.Run("low confidence, wide spread", func(t *testing.T) {
		got := Recommendations(day(2025, 4, 15), 0.5, 22)
		assert.Contains(t, got, "Low confidence - use as rough estimate only")
		assert.Contains(t, got, "Require real-time monitoring for confirmation")
		assert.Contains(t, got, "High uncertainty (±22 days) - check weekly")
		assert.Len(t, got, 6)
	})
}

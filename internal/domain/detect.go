package domain

import (
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
)

// EventKind tags how a bloom event was detected.
type EventKind string

const (
	KindSingleObservation EventKind = "single_observation"
	KindSustainedBloom    EventKind = "sustained_bloom"
	KindPeakBloom         EventKind = "peak_bloom"
)

// Intensity classifies the mean index value over an episode.
type Intensity string

const (
	IntensityLow      Intensity = "low"
	IntensityModerate Intensity = "moderate"
	IntensityHigh     Intensity = "high"
	IntensityVeryHigh Intensity = "very_high"
)

// DetectionStatus tags the outcome of a detection pass.
type DetectionStatus string

const (
	DetectionOK     DetectionStatus = "ok"
	DetectionNoData DetectionStatus = "no_data"
	DetectionError  DetectionStatus = "error"
)

// BloomEvent is one detected flowering episode. Indices are positions in the
// source series with StartIndex <= PeakIndex <= EndIndex. Dates are set only
// when the series was dated far enough to cover all three positions.
type BloomEvent struct {
	Kind         EventKind  `json:"kind"`
	StartIndex   int        `json:"start_index"`
	PeakIndex    int        `json:"peak_index"`
	EndIndex     int        `json:"end_index"`
	StartValue   float64    `json:"start_value"`
	PeakValue    float64    `json:"peak_ndvi"`
	EndValue     float64    `json:"end_value"`
	MeanValue    float64    `json:"mean_ndvi"`
	PeakEVI      *float64   `json:"peak_evi,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	PeakDate     *time.Time `json:"peak_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Duration     int        `json:"duration_observations"`
	IncreaseRate float64    `json:"increase_rate"`
	Confidence   float64    `json:"confidence"`
	Intensity    Intensity  `json:"intensity"`
}

// Detection is the result of one detection pass. Events is never nil.
type Detection struct {
	Status  DetectionStatus `json:"status"`
	Events  []BloomEvent    `json:"bloom_events"`
	Message string          `json:"message,omitempty"`
}

// DetectorConfig holds the detection constants. Zero fields take defaults.
type DetectorConfig struct {
	Threshold       float64
	MinPeakDistance int
	MinProminence   float64
	RiseStep        float64 // minimum per-observation ascent inside an episode
	FallStep        float64 // minimum per-observation decline that extends an episode
}

// DefaultDetectorConfig returns threshold 0.4, distance 2, prominence 0.1,
// and 0.05 boundary steps.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:       0.4,
		MinPeakDistance: 2,
		MinProminence:   0.1,
		RiseStep:        0.05,
		FallStep:        0.05,
	}
}

// Detector finds bloom events in index series. It holds only read-only
// configuration and is safe for concurrent use.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a Detector, filling unset fields from the defaults.
func NewDetector(cfg DetectorConfig) *Detector {
	def := DefaultDetectorConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MinPeakDistance <= 0 {
		cfg.MinPeakDistance = def.MinPeakDistance
	}
	if cfg.MinProminence <= 0 {
		cfg.MinProminence = def.MinProminence
	}
	if cfg.RiseStep <= 0 {
		cfg.RiseStep = def.RiseStep
	}
	if cfg.FallStep <= 0 {
		cfg.FallStep = def.FallStep
	}
	return &Detector{cfg: cfg}
}

// Threshold returns the configured bloom threshold.
func (d *Detector) Threshold() float64 { return d.cfg.Threshold }

// Detect finds bloom events in values. evi and dates are optional; threshold
// <= 0 uses the configured one. A fault inside detection is reported as an
// error status with no events.
func (d *Detector) Detect(values, evi []float64, threshold float64, dates []time.Time) (det Detection) {
	defer func() {
		if r := recover(); r != nil {
			det = Detection{
				Status:  DetectionError,
				Events:  []BloomEvent{},
				Message: fmt.Sprintf("bloom detection failed: %v", r),
			}
		}
	}()

	if threshold <= 0 {
		threshold = d.cfg.Threshold
	}
	if len(values) == 0 {
		return Detection{Status: DetectionNoData, Events: []BloomEvent{}}
	}

	var events []BloomEvent
	if len(values) == 1 {
		events = d.single(values, evi, threshold, dates)
	} else {
		peaks := findPeaks(values, peakCriteria{
			height:     threshold,
			distance:   d.cfg.MinPeakDistance,
			prominence: d.cfg.MinProminence,
		})
		if len(peaks) == 0 {
			events = d.sustained(values, evi, threshold, dates)
		} else {
			events = make([]BloomEvent, 0, len(peaks))
			for _, p := range peaks {
				events = append(events, d.episode(values, evi, threshold, dates, p))
			}
		}
	}
	if events == nil {
		events = []BloomEvent{}
	}
	return Detection{Status: DetectionOK, Events: events}
}

func (d *Detector) single(values, evi []float64, threshold float64, dates []time.Time) []BloomEvent {
	v := values[0]
	if !(v >= threshold) {
		return nil
	}
	ev := BloomEvent{
		Kind:       KindSingleObservation,
		StartValue: v,
		PeakValue:  v,
		EndValue:   v,
		MeanValue:  v,
		Duration:   1,
		Confidence: confidenceFor(v, threshold),
		Intensity:  IntensityFor(v),
	}
	attachDates(&ev, dates)
	attachEVI(&ev, evi)
	return []BloomEvent{ev}
}

// sustained summarizes a plateau above threshold that never forms a distinct
// peak. NaN samples never qualify.
func (d *Detector) sustained(values, evi []float64, threshold float64, dates []time.Time) []BloomEvent {
	var masked []float64
	first, last, peak := -1, -1, -1
	for i, v := range values {
		if !(v >= threshold) {
			continue
		}
		if first < 0 {
			first = i
		}
		if peak < 0 || v > values[peak] {
			peak = i
		}
		last = i
		masked = append(masked, v)
	}
	if len(masked) < 2 {
		return nil
	}

	mean, _ := stats.Mean(masked)
	ev := BloomEvent{
		Kind:       KindSustainedBloom,
		StartIndex: first,
		PeakIndex:  peak,
		EndIndex:   last,
		StartValue: values[first],
		PeakValue:  values[peak],
		EndValue:   values[last],
		MeanValue:  mean,
		Duration:   len(masked),
		Confidence: 0.7,
		Intensity:  IntensityFor(mean),
	}
	if peak > first {
		ev.IncreaseRate = (values[peak] - values[first]) / float64(peak-first)
	}
	attachDates(&ev, dates)
	attachEVI(&ev, evi)
	return []BloomEvent{ev}
}

func (d *Detector) episode(values, evi []float64, threshold float64, dates []time.Time, peak int) BloomEvent {
	start := d.bloomStart(values, peak)
	end := d.bloomEnd(values, peak, threshold)

	mean, _ := stats.Mean(values[start : end+1])
	ev := BloomEvent{
		Kind:         KindPeakBloom,
		StartIndex:   start,
		PeakIndex:    peak,
		EndIndex:     end,
		StartValue:   values[start],
		PeakValue:    values[peak],
		EndValue:     values[end],
		MeanValue:    mean,
		Duration:     end - start + 1,
		IncreaseRate: (values[peak] - values[start]) / float64(max(peak-start, 1)),
		Confidence:   confidenceFor(values[peak], threshold),
		Intensity:    IntensityFor(mean),
	}
	attachDates(&ev, dates)
	attachEVI(&ev, evi)
	return ev
}

// bloomStart walks back from the peak while each step into the next sample
// rises by at least RiseStep. Index 0 is never tested and is the fallback.
func (d *Detector) bloomStart(values []float64, peak int) int {
	for i := peak - 1; i >= 0; i-- {
		if i == 0 {
			return 0
		}
		if values[i+1]-values[i] < d.cfg.RiseStep {
			return i + 1
		}
	}
	return 0
}

// bloomEnd walks forward from the peak through a steep decline and stops at
// the first sample below threshold that is not part of it.
func (d *Detector) bloomEnd(values []float64, peak int, threshold float64) int {
	last := len(values) - 1
	if peak >= last {
		return last
	}
	for i := peak + 1; i <= last; i++ {
		if i == last {
			return i
		}
		if values[i]-values[i-1] < -d.cfg.FallStep {
			continue
		}
		if values[i] < threshold {
			return i
		}
	}
	return last
}

func attachDates(ev *BloomEvent, dates []time.Time) {
	need := max(ev.StartIndex, ev.PeakIndex, ev.EndIndex)
	if len(dates) <= need {
		return
	}
	start, peak, end := dates[ev.StartIndex], dates[ev.PeakIndex], dates[ev.EndIndex]
	ev.StartDate, ev.PeakDate, ev.EndDate = &start, &peak, &end
}

func attachEVI(ev *BloomEvent, evi []float64) {
	if len(evi) <= ev.PeakIndex {
		return
	}
	v := evi[ev.PeakIndex]
	ev.PeakEVI = &v
}

// confidenceFor is a fixed step function of the peak value.
func confidenceFor(v, threshold float64) float64 {
	switch {
	case v < threshold:
		return 0
	case v < 0.5:
		return 0.5
	case v < 0.6:
		return 0.7
	case v < 0.7:
		return 0.85
	default:
		return 0.95
	}
}

// IntensityFor classifies a mean index value.
func IntensityFor(mean float64) Intensity {
	switch {
	case mean < 0.4:
		return IntensityLow
	case mean < 0.6:
		return IntensityModerate
	case mean < 0.75:
		return IntensityHigh
	default:
		return IntensityVeryHigh
	}
}

// PeakBloom returns the event with the highest peak value. The first event
// wins ties.
func PeakBloom(events []BloomEvent) (BloomEvent, bool) {
	if len(events) == 0 {
		return BloomEvent{}, false
	}
	best := 0
	for i := range events {
		if events[i].PeakValue > events[best].PeakValue {
			best = i
		}
	}
	return events[best], true
}

// IntensityScore maps the mean peak value of events from [threshold, 1] onto
// [0, 1]. No events scores 0.
func (d *Detector) IntensityScore(events []BloomEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	peaks := make([]float64, len(events))
	for i := range events {
		peaks[i] = events[i].PeakValue
	}
	mean, _ := stats.Mean(peaks)
	span := 1 - d.cfg.Threshold
	if span <= 0 {
		return 0
	}
	return clip((mean-d.cfg.Threshold)/span, 0, 1)
}

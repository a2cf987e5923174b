package domain

import (
	"strings"
	"time"
)

// Season names a per-year observation window.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
	SeasonWinter Season = "winter"
	SeasonAll    Season = "all"
)

// ParseSeason normalizes a season label. Unknown labels fall back to spring.
func ParseSeason(s string) Season {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case SeasonSummer:
		return SeasonSummer
	case SeasonFall:
		return SeasonFall
	case SeasonWinter:
		return SeasonWinter
	case SeasonAll:
		return SeasonAll
	default:
		return SeasonSpring
	}
}

// Window returns the inclusive date range of the season in the given year.
// Winter runs from December into February of the following year.
func (s Season) Window(year int) (time.Time, time.Time) {
	d := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }
	switch s {
	case SeasonSummer:
		return d(year, time.June, 1), d(year, time.August, 31)
	case SeasonFall:
		return d(year, time.September, 1), d(year, time.November, 30)
	case SeasonWinter:
		return d(year, time.December, 1), d(year+1, time.February, 28)
	case SeasonAll:
		return d(year, time.January, 1), d(year, time.December, 31)
	default:
		return d(year, time.March, 1), d(year, time.May, 31)
	}
}

// YearlySummary aggregates one season's bloom activity for one year.
type YearlySummary struct {
	Year        int          `json:"year"`
	Season      Season       `json:"season"`
	Events      []BloomEvent `json:"bloom_events"`
	BloomCount  int          `json:"bloom_count"`
	PeakNDVI    float64      `json:"peak_ndvi"`
	AverageNDVI float64      `json:"avg_ndvi"`
}

// SummarizeYear builds a YearlySummary from a season's series and the events
// detected in it. Peak and average are taken over the whole series.
func SummarizeYear(year int, season Season, series VegetationSeries, events []BloomEvent) YearlySummary {
	st := Summarize(series.Values)
	if events == nil {
		events = []BloomEvent{}
	}
	return YearlySummary{
		Year:        year,
		Season:      season,
		Events:      events,
		BloomCount:  len(events),
		PeakNDVI:    st.Max,
		AverageNDVI: st.Mean,
	}
}

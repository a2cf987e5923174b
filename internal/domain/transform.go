package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ParseRawEvent deserializes a source message and converts it into the
// payload it describes. Dates use the YYYY-MM-DD layout.
func ParseRawEvent(raw RawEvent) (SeriesMessage, SatellitePayload, error) {
	var msg SeriesMessage
	if err := json.Unmarshal(raw.Value, &msg); err != nil {
		return SeriesMessage{}, SatellitePayload{}, fmt.Errorf("parse series message: %w", err)
	}
	if msg.ID == "" && len(raw.Key) > 0 {
		msg.ID = string(raw.Key)
	}
	payload, err := msg.Payload()
	if err != nil {
		return SeriesMessage{}, SatellitePayload{}, err
	}
	return msg, payload, nil
}

// Payload validates the message and converts it to a SatellitePayload.
func (m SeriesMessage) Payload() (SatellitePayload, error) {
	if m.Location.Lat < -90 || m.Location.Lat > 90 || m.Location.Lon < -180 || m.Location.Lon > 180 {
		return SatellitePayload{}, fmt.Errorf("location out of range: %.4f,%.4f", m.Location.Lat, m.Location.Lon)
	}

	p := SatellitePayload{Satellite: m.Satellite}
	if len(m.Values) > 0 {
		dates, err := parseDates(m.Dates)
		if err != nil {
			return SatellitePayload{}, err
		}
		if len(dates) > 0 && len(dates) != len(m.Values) {
			return SatellitePayload{}, fmt.Errorf("series has %d dates for %d values", len(dates), len(m.Values))
		}
		p.Series = &VegetationSeries{Dates: dates, Values: m.Values, EVI: m.EVI}
		return p, nil
	}

	for _, sc := range m.Scenes {
		d, err := time.Parse(time.DateOnly, sc.Date)
		if err != nil {
			return SatellitePayload{}, fmt.Errorf("parse scene date %q: %w", sc.Date, err)
		}
		p.Scenes = append(p.Scenes, Scene{Date: d, Bands: sc.Bands})
	}
	if p.Empty() {
		return SatellitePayload{}, errors.New("series message carries neither values nor scenes")
	}
	return p, nil
}

func parseDates(raw []string) ([]time.Time, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]time.Time, len(raw))
	for i, s := range raw {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", s, err)
		}
		out[i] = d
	}
	return out, nil
}

// Statistics summarizes a detection over its series.
func Statistics(d *Detector, series VegetationSeries, events []BloomEvent) BloomStatistics {
	st := BloomStatistics{
		TotalEvents:    len(events),
		AverageNDVI:    Summarize(series.Values).Mean,
		BloomIntensity: d.IntensityScore(events),
	}
	if peak, ok := PeakBloom(events); ok {
		st.PeakBloom = &peak
	}
	return st
}

// BuildReport runs detection over a parsed source message and stamps the
// result with a deterministic ID and the processing time.
func BuildReport(msg SeriesMessage, payload SatellitePayload, d *Detector) BloomReport {
	series := IndexSeries(payload)
	det := d.Detect(series.Values, series.EVI, msg.Threshold, series.Dates)

	report := BloomReport{
		ID:           msg.ID,
		Location:     msg.Location,
		Satellite:    payload.Satellite,
		Observations: series.Len(),
		Status:       det.Status,
		Message:      det.Message,
		Events:       det.Events,
		Statistics:   Statistics(d, series, det.Events),
		Signature:    SpectralSignature(series.Values),
		ProcessedAt:  clock.Now().UTC(),
	}
	if series.Dated() {
		first, last := series.Dates[0], series.Dates[len(series.Dates)-1]
		report.StartDate, report.EndDate = &first, &last
	}
	if report.ID == "" {
		report.ID = generateID(msg.Location, payload.Satellite, report.StartDate, report.EndDate, series.Len())
	}
	return report
}

// generateID produces a deterministic ID from the series' identifying fields,
// so replaying the same message yields the same report ID.
func generateID(loc Location, satellite string, start, end *time.Time, n int) string {
	var from, to string
	if start != nil {
		from = start.Format(time.DateOnly)
	}
	if end != nil {
		to = end.Format(time.DateOnly)
	}
	input := fmt.Sprintf("%.4f|%.4f|%s|%s|%s|%d", loc.Lat, loc.Lon, satellite, from, to, n)
	hash := sha256.Sum256([]byte(input))
	return "bloom-" + hex.EncodeToString(hash[:8])
}

package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Location is a WGS-84 point. It is passed through opaquely into reports and
// predictions for traceability.
type Location struct {
	Lat float64 `json:"lat" csv:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" csv:"lon" validate:"gte=-180,lte=180"`
}

// SeriesMessage is the flat JSON document published to the source topic by the
// upstream collector. Either Values (pre-derived NDVI, optionally with EVI) or
// Scenes (raw bands) is populated.
type SeriesMessage struct {
	ID        string         `json:"id,omitempty"`
	Location  Location       `json:"location"`
	Satellite string         `json:"satellite,omitempty"`
	Dates     []string       `json:"dates,omitempty"` // YYYY-MM-DD
	Values    []float64      `json:"values,omitempty"`
	EVI       []float64      `json:"evi_values,omitempty"`
	Scenes    []SceneMessage `json:"scenes,omitempty"`
	Threshold float64        `json:"threshold,omitempty"`
}

// SceneMessage is one dated acquisition with its band grids.
type SceneMessage struct {
	Date  string  `json:"date"`
	Bands BandSet `json:"bands"`
}

// BloomStatistics summarizes the events detected in one series.
type BloomStatistics struct {
	TotalEvents    int         `json:"total_events"`
	PeakBloom      *BloomEvent `json:"peak_bloom,omitempty"`
	AverageNDVI    float64     `json:"average_ndvi"`
	BloomIntensity float64     `json:"bloom_intensity"`
}

// BloomReport is the domain-rich result emitted for one source series.
type BloomReport struct {
	ID           string          `json:"id"`
	Location     Location        `json:"location"`
	Satellite    string          `json:"satellite,omitempty"`
	Observations int             `json:"observations"`
	StartDate    *time.Time      `json:"start_date,omitempty"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
	Status       DetectionStatus `json:"status"`
	Message      string          `json:"message,omitempty"`
	Events       []BloomEvent    `json:"bloom_events"`
	Statistics   BloomStatistics `json:"statistics"`
	Signature    Signature       `json:"spectral_signature"`
	ProcessedAt  time.Time       `json:"processed_at"`
}

package domain

import (
	"time"

	"github.com/montanaflynn/stats"
)

// Band names recognized by the index calculators.
const (
	BandRed   = "red"
	BandNIR   = "nir"
	BandBlue  = "blue"
	BandGreen = "green"
)

// Band is a 2-D grid of surface reflectance values, row-major.
type Band [][]float64

// BandSet maps a band name to its grid. All grids of one scene share a shape.
type BandSet map[string]Band

// Index is a 2-D grid of vegetation-index values with the shape of its bands.
// An empty Index means a required band was missing.
type Index [][]float64

// Values flattens the grid row by row.
func (ix Index) Values() []float64 {
	n := 0
	for _, row := range ix {
		n += len(row)
	}
	out := make([]float64, 0, n)
	for _, row := range ix {
		out = append(out, row...)
	}
	return out
}

// Mean returns the mean over all cells, or 0 for an empty grid.
func (ix Index) Mean() float64 {
	m, err := stats.Mean(ix.Values())
	if err != nil {
		return 0
	}
	return m
}

// Scene is one dated acquisition.
type Scene struct {
	Date  time.Time
	Bands BandSet
}

// VegetationSeries is an ordered index series. Dates is either empty or the
// same length as Values; EVI is optional.
type VegetationSeries struct {
	Dates  []time.Time `json:"dates,omitempty"`
	Values []float64   `json:"values"`
	EVI    []float64   `json:"evi_values,omitempty"`
}

// Len returns the number of observations.
func (s VegetationSeries) Len() int { return len(s.Values) }

// Dated reports whether every observation carries a date.
func (s VegetationSeries) Dated() bool {
	return len(s.Dates) > 0 && len(s.Dates) == len(s.Values)
}

// SatellitePayload is what a catalog returns for one location and window:
// either a pre-derived series or dated band scenes.
type SatellitePayload struct {
	Satellite string
	Series    *VegetationSeries
	Scenes    []Scene
	Note      string
	Demo      bool // generated rather than observed
}

// Empty reports whether the payload carries no observations at all.
func (p SatellitePayload) Empty() bool {
	return (p.Series == nil || p.Series.Len() == 0) && len(p.Scenes) == 0
}

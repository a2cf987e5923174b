package domain

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// ErrNoData is returned by series sources that have nothing for a query.
var ErrNoData = errors.New("no satellite data available")

// SeriesQuery selects the observations of one location and date window.
type SeriesQuery struct {
	Location  Location
	Start     time.Time
	End       time.Time
	BufferKm  float64
	Satellite string
}

// SeriesFetcher retrieves satellite observations for a query. Implementations
// return ErrNoData (possibly wrapped) when the window is empty.
type SeriesFetcher interface {
	Fetch(ctx context.Context, q SeriesQuery) (SatellitePayload, error)
}

const kmPerDegree = 111.0

// BoundingBox expands a point by bufferKm in every direction. Longitude degrees
// shrink with the cosine of latitude.
func BoundingBox(loc Location, bufferKm float64) orb.Bound {
	dLat := bufferKm / kmPerDegree
	dLon := bufferKm / (kmPerDegree * math.Cos(loc.Lat*math.Pi/180))
	return orb.Bound{
		Min: orb.Point{loc.Lon - dLon, loc.Lat - dLat},
		Max: orb.Point{loc.Lon + dLon, loc.Lat + dLat},
	}
}

// Point converts the location to an orb point (lon, lat order).
func (l Location) Point() orb.Point { return orb.Point{l.Lon, l.Lat} }

// LocationFromPoint converts an orb point back to a Location.
func LocationFromPoint(p orb.Point) Location { return Location{Lat: p.Lat(), Lon: p.Lon()} }

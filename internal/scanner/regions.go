package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
)

// Region is a named bounding box with a grid spacing suited to its size.
type Region struct {
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	BBox       orb.Bound `json:"-"`
	Resolution float64   `json:"grid_resolution"`
}

func bound(minLon, minLat, maxLon, maxLat float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
}

var regions = map[string]Region{
	"california_desert":   {Name: "California Desert Region", BBox: bound(-120.0, 33.0, -115.0, 37.0), Resolution: 0.3},
	"antelope_valley":     {Name: "Antelope Valley", BBox: bound(-118.6, 34.5, -117.9, 34.95), Resolution: 0.1},
	"death_valley":        {Name: "Death Valley Region", BBox: bound(-117.5, 36.0, -116.5, 37.0), Resolution: 0.2},
	"carrizo_plain":       {Name: "Carrizo Plain", BBox: bound(-120.2, 35.0, -119.6, 35.4), Resolution: 0.1},
	"washington_dc":       {Name: "Washington DC Metro", BBox: bound(-77.2, 38.8, -76.9, 39.0), Resolution: 0.05},
	"great_plains_kansas": {Name: "Kansas Great Plains", BBox: bound(-97.5, 37.5, -96.0, 39.0), Resolution: 0.25},
}

// LookupRegion returns the predefined region with the given key.
func LookupRegion(key string) (Region, bool) {
	r, ok := regions[key]
	if !ok {
		return Region{}, false
	}
	r.Key = key
	return r, true
}

// RegionKeys lists the predefined region keys in sorted order.
func RegionKeys() []string {
	keys := make([]string, 0, len(regions))
	for k := range regions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ScanRegion scans a predefined region by key. An unknown key yields an
// error result listing the available regions.
func (s *Scanner) ScanRegion(ctx context.Context, key string, start, end time.Time, satellite string, progress func(done, total int)) (Result, error) {
	region, ok := LookupRegion(key)
	if !ok {
		return Result{
			Status:           StatusError,
			Message:          fmt.Sprintf("Unknown region: %s", key),
			AvailableRegions: RegionKeys(),
		}, nil
	}

	res, err := s.Scan(ctx, Request{
		BBox:       region.BBox,
		Start:      start,
		End:        end,
		Resolution: region.Resolution,
		Satellite:  satellite,
		Progress:   progress,
	})
	if err != nil {
		return Result{}, err
	}
	if res.Status == StatusSuccess {
		res.RegionName = region.Name
	}
	return res, nil
}

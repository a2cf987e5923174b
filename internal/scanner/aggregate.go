package scanner

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/analysis"
	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const maxHotspots = 10

// Result is the regional summary of a scan. On error status only the
// identifying fields, Message, and Recommendation or AvailableRegions are set.
type Result struct {
	ID               string                     `json:"scan_id,omitempty"`
	Status           string                     `json:"status"`
	Message          string                     `json:"message,omitempty"`
	Recommendation   string                     `json:"recommendation,omitempty"`
	AvailableRegions []string                   `json:"available_regions,omitempty"`
	RegionName       string                     `json:"region_name,omitempty"`
	BBox             [4]float64                 `json:"bbox"` // min lon, min lat, max lon, max lat
	DateRange        analysis.Window            `json:"date_range"`
	Resolution       float64                    `json:"grid_resolution"`
	GridPoints       int                        `json:"grid_points"`
	AnalyzedPoints   int                        `json:"analyzed_points"`
	BloomDetected    bool                       `json:"bloom_detected"`
	Statistics       *Statistics                `json:"statistics,omitempty"`
	Intensities      map[domain.Intensity]int   `json:"intensity_distribution,omitempty"`
	Hotspots         []analysis.PointResult     `json:"hotspots,omitempty"`
	Extent           *Extent                    `json:"spatial_extent,omitempty"`
	Coverage         *Coverage                  `json:"bloom_coverage,omitempty"`
	Interpretation   *Interpretation            `json:"interpretation,omitempty"`
	Locations        []analysis.PointResult     `json:"all_bloom_locations,omitempty"`
	DataSources      *DataSources               `json:"data_sources,omitempty"`
	GeoJSON          *geojson.FeatureCollection `json:"geojson,omitempty"`
}

// DataSources tallies where the bloom locations' observations came from.
type DataSources struct {
	TotalPoints int            `json:"total_points"`
	RealPoints  int            `json:"real_data_points"`
	DemoPoints  int            `json:"demo_data_points"`
	Satellites  map[string]int `json:"satellites,omitempty"`
	Notes       []string       `json:"notes"`
}

// Statistics describes the peak values of the bloom locations.
type Statistics struct {
	BloomLocations int     `json:"total_bloom_locations"`
	AveragePeak    float64 `json:"average_peak_ndvi"`
	MaxPeak        float64 `json:"max_peak_ndvi"`
	MinPeak        float64 `json:"min_peak_ndvi"`
	StdPeak        float64 `json:"std_peak_ndvi"`
}

// Extent is the footprint of the bloom locations.
type Extent struct {
	CenterLat float64    `json:"center_lat"`
	CenterLon float64    `json:"center_lon"`
	LatRange  [2]float64 `json:"lat_range"`
	LonRange  [2]float64 `json:"lon_range"`
}

// Coverage is the share of grid points that bloomed.
type Coverage struct {
	Percentage  float64 `json:"percentage"`
	Description string  `json:"description"`
}

// Interpretation is the qualitative reading of a scan.
type Interpretation struct {
	OverallAssessment string   `json:"overall_assessment"`
	BloomQuality      string   `json:"bloom_quality"`
	SpatialPattern    string   `json:"spatial_pattern"`
	Recommendations   []string `json:"recommendations"`
}

// aggregate fills the summary fields of base from the bloom locations, which
// arrive in grid order.
func aggregate(base Result, blooms []analysis.PointResult) Result {
	base.Status = StatusSuccess
	if len(blooms) == 0 {
		base.Message = "No significant blooms detected in this region"
		return base
	}
	base.BloomDetected = true

	peaks := make([]float64, len(blooms))
	lats := make([]float64, len(blooms))
	lons := make([]float64, len(blooms))
	base.Intensities = map[domain.Intensity]int{}
	for i, b := range blooms {
		peaks[i] = b.PeakNDVI
		lats[i] = b.Lat
		lons[i] = b.Lon
		base.Intensities[b.Intensity]++
	}

	ps := domain.Summarize(peaks)
	base.Statistics = &Statistics{
		BloomLocations: len(blooms),
		AveragePeak:    ps.Mean,
		MaxPeak:        ps.Max,
		MinPeak:        ps.Min,
		StdPeak:        ps.Std,
	}

	latS, lonS := domain.Summarize(lats), domain.Summarize(lons)
	base.Extent = &Extent{
		CenterLat: latS.Mean,
		CenterLon: lonS.Mean,
		LatRange:  [2]float64{latS.Min, latS.Max},
		LonRange:  [2]float64{lonS.Min, lonS.Max},
	}

	var pct float64
	if base.GridPoints > 0 {
		pct = float64(len(blooms)) / float64(base.GridPoints) * 100
	}
	base.Coverage = &Coverage{Percentage: pct, Description: describeCoverage(len(blooms))}

	sorted := append([]analysis.PointResult(nil), blooms...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PeakNDVI > sorted[j].PeakNDVI })
	base.Hotspots = sorted[:min(maxHotspots, len(sorted))]
	base.Locations = blooms
	base.DataSources = sourcesOf(blooms)
	base.Interpretation = interpret(*base.Statistics)
	base.GeoJSON = hotspotCollection(base.BBox, base.Hotspots)
	return base
}

// sourcesOf counts real and demo points. Notes are distinct, in first-seen order.
func sourcesOf(points []analysis.PointResult) *DataSources {
	ds := &DataSources{TotalPoints: len(points), Satellites: map[string]int{}, Notes: []string{}}
	seen := map[string]bool{}
	for _, p := range points {
		if p.Demo {
			ds.DemoPoints++
		} else {
			ds.RealPoints++
		}
		if p.Satellite != "" {
			ds.Satellites[p.Satellite]++
		}
		if p.Note != "" && !seen[p.Note] {
			seen[p.Note] = true
			ds.Notes = append(ds.Notes, p.Note)
		}
	}
	return ds
}

func describeCoverage(n int) string {
	switch {
	case n > 50:
		return "Extensive bloom - widespread across region"
	case n > 20:
		return "Significant bloom - covering large portions"
	case n > 10:
		return "Moderate bloom - scattered throughout region"
	case n > 5:
		return "Limited bloom - isolated pockets"
	default:
		return "Sparse bloom - few locations detected"
	}
}

func interpret(st Statistics) *Interpretation {
	in := &Interpretation{Recommendations: []string{}}

	switch {
	case st.AveragePeak > 0.6 && st.BloomLocations > 20:
		in.OverallAssessment, in.BloomQuality = "Exceptional regional bloom event", "Very strong"
	case st.AveragePeak > 0.5 && st.BloomLocations > 10:
		in.OverallAssessment, in.BloomQuality = "Strong regional bloom", "Strong"
	case st.AveragePeak > 0.4 && st.BloomLocations > 5:
		in.OverallAssessment, in.BloomQuality = "Moderate regional bloom", "Moderate"
	default:
		in.OverallAssessment, in.BloomQuality = "Weak or patchy bloom", "Limited"
	}

	switch {
	case st.StdPeak < 0.1:
		in.SpatialPattern = "Uniform - consistent bloom across region"
	case st.StdPeak < 0.15:
		in.SpatialPattern = "Moderate variation - some areas stronger"
	default:
		in.SpatialPattern = "High variation - very patchy distribution"
	}

	if st.BloomLocations > 15 {
		in.Recommendations = append(in.Recommendations,
			"Consider regional visitor management",
			"Multiple viewing locations available")
	}
	if st.MaxPeak > 0.7 {
		in.Recommendations = append(in.Recommendations,
			"Exceptional displays at hotspot locations",
			"Priority monitoring of top locations")
	}
	if st.AveragePeak > 0.5 {
		in.Recommendations = append(in.Recommendations,
			"Good conditions for ecological surveys",
			"Excellent pollinator habitat currently")
	}
	return in
}

// hotspotCollection exports the hotspots as GeoJSON points, ranked by peak.
func hotspotCollection(bbox [4]float64, hotspots []analysis.PointResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.BBox(bbox[:])
	for i, h := range hotspots {
		f := geojson.NewFeature(orb.Point{h.Lon, h.Lat})
		f.Properties["rank"] = i + 1
		f.Properties["peak_ndvi"] = h.PeakNDVI
		f.Properties["bloom_count"] = h.BloomCount
		f.Properties["intensity"] = string(h.Intensity)
		if h.PeakDate != nil {
			f.Properties["peak_date"] = h.PeakDate.Format(time.DateOnly)
		}
		f.ID = fmt.Sprintf("hotspot-%d", i+1)
		fc.Append(f)
	}
	return fc
}

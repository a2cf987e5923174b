package domain

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// DefaultSAVIFactor is the soil-brightness correction L used by SAVI.
const DefaultSAVIFactor = 0.5

// EVIApproximationFactor scales NDVI when EVI cannot be computed from bands.
const EVIApproximationFactor = 1.15

// NDVI computes (NIR - Red) / (NIR + Red) per cell.
func NDVI(b BandSet) Index {
	return combine(b, []string{BandNIR, BandRed}, func(v []float64) float64 {
		nir, red := v[0], v[1]
		return ratio(nir-red, nir+red)
	})
}

// EVI computes 2.5 * (NIR - Red) / (NIR + 6*Red - 7.5*Blue + 1) per cell.
func EVI(b BandSet) Index {
	return combine(b, []string{BandNIR, BandRed, BandBlue}, func(v []float64) float64 {
		nir, red, blue := v[0], v[1], v[2]
		return ratio(2.5*(nir-red), nir+6*red-7.5*blue+1)
	})
}

// SAVI computes the soil-adjusted index with brightness factor l.
func SAVI(b BandSet, l float64) Index {
	return combine(b, []string{BandNIR, BandRed}, func(v []float64) float64 {
		nir, red := v[0], v[1]
		return ratio((nir-red)*(1+l), nir+red+l)
	})
}

// GNDVI computes (NIR - Green) / (NIR + Green) per cell.
func GNDVI(b BandSet) Index {
	return combine(b, []string{BandNIR, BandGreen}, func(v []float64) float64 {
		nir, green := v[0], v[1]
		return ratio(nir-green, nir+green)
	})
}

// ratio is the numeric policy shared by every index: a zero denominator or a
// non-finite quotient reads as 0, and the result is clipped to [-1, 1].
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return clip(v, -1, 1)
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// combine applies fn cell by cell over the named bands. It returns an empty
// Index when a band is absent or the grids disagree in shape.
func combine(b BandSet, names []string, fn func([]float64) float64) Index {
	grids := make([]Band, len(names))
	for i, name := range names {
		g, ok := b[name]
		if !ok || len(g) == 0 {
			return Index{}
		}
		grids[i] = g
	}
	ref := grids[0]
	for _, g := range grids[1:] {
		if !sameShape(ref, g) {
			return Index{}
		}
	}

	out := make(Index, len(ref))
	cell := make([]float64, len(grids))
	for r := range ref {
		out[r] = make([]float64, len(ref[r]))
		for c := range ref[r] {
			for i, g := range grids {
				cell[i] = g[r][c]
			}
			out[r][c] = fn(cell)
		}
	}
	return out
}

func sameShape(a, b Band) bool {
	if len(a) != len(b) {
		return false
	}
	for r := range a {
		if len(a[r]) != len(b[r]) {
			return false
		}
	}
	return true
}

// ApproximateEVI derives an EVI series from NDVI as NDVI × 1.15, clipped.
func ApproximateEVI(ndvi []float64) []float64 {
	out := make([]float64, len(ndvi))
	for i, v := range ndvi {
		out[i] = clip(v*EVIApproximationFactor, -1, 1)
	}
	return out
}

// IndexSeries derives the NDVI series (with EVI) carried by a payload. A
// pre-derived series is used as is; otherwise each scene contributes its mean
// NDVI, and scenes missing red or NIR are skipped.
func IndexSeries(p SatellitePayload) VegetationSeries {
	if p.Series != nil && p.Series.Len() > 0 {
		s := VegetationSeries{
			Values: append([]float64(nil), p.Series.Values...),
		}
		if p.Series.Dated() {
			s.Dates = append(s.Dates, p.Series.Dates...)
		}
		if len(p.Series.EVI) == len(p.Series.Values) {
			s.EVI = append([]float64(nil), p.Series.EVI...)
		} else {
			s.EVI = ApproximateEVI(s.Values)
		}
		return s
	}

	scenes := append([]Scene(nil), p.Scenes...)
	sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].Date.Before(scenes[j].Date) })

	var s VegetationSeries
	for _, sc := range scenes {
		ndvi := NDVI(sc.Bands)
		if len(ndvi) == 0 {
			continue
		}
		mean := ndvi.Mean()
		evi := EVI(sc.Bands)
		eviMean := clip(mean*EVIApproximationFactor, -1, 1)
		if len(evi) > 0 {
			eviMean = evi.Mean()
		}
		s.Dates = append(s.Dates, sc.Date)
		s.Values = append(s.Values, mean)
		s.EVI = append(s.EVI, eviMean)
	}
	return s
}

// VegetationClass is one NDVI cover bin.
type VegetationClass string

const (
	ClassWater    VegetationClass = "water"
	ClassBareSoil VegetationClass = "bare_soil"
	ClassSparse   VegetationClass = "sparse_vegetation"
	ClassModerate VegetationClass = "moderate_vegetation"
	ClassDense    VegetationClass = "dense_vegetation"
)

// ClassifyVegetation reports the percentage of cells in each cover bin. An
// empty input yields an empty map.
func ClassifyVegetation(ndvi []float64) map[VegetationClass]float64 {
	out := map[VegetationClass]float64{}
	if len(ndvi) == 0 {
		return out
	}
	counts := map[VegetationClass]int{}
	for _, v := range ndvi {
		counts[vegetationClass(v)]++
	}
	total := float64(len(ndvi))
	for _, c := range []VegetationClass{ClassWater, ClassBareSoil, ClassSparse, ClassModerate, ClassDense} {
		out[c] = float64(counts[c]) / total * 100
	}
	return out
}

func vegetationClass(v float64) VegetationClass {
	switch {
	case v < 0:
		return ClassWater
	case v < 0.2:
		return ClassBareSoil
	case v < 0.4:
		return ClassSparse
	case v < 0.6:
		return ClassModerate
	default:
		return ClassDense
	}
}

// Signature is a coarse "is this scene blooming" heuristic over NDVI values.
type Signature struct {
	Blooming   bool    `json:"blooming"`
	Confidence float64 `json:"confidence"`
	MeanNDVI   float64 `json:"mean_ndvi"`
	StdNDVI    float64 `json:"std_ndvi"`
	MaxNDVI    float64 `json:"max_ndvi"`
}

// SpectralSignature scores NDVI values: a high mean adds 0.4 (or 0.2 above
// 0.4), a patchy spread adds 0.3, and a very green maximum adds 0.3.
func SpectralSignature(ndvi []float64) Signature {
	if len(ndvi) == 0 {
		return Signature{}
	}
	st := Summarize(ndvi)

	var conf float64
	switch {
	case st.Mean > 0.5:
		conf += 0.4
	case st.Mean > 0.4:
		conf += 0.2
	}
	if st.Std > 0.15 {
		conf += 0.3
	}
	if st.Max > 0.7 {
		conf += 0.3
	}
	return Signature{
		Blooming:   conf > 0.5,
		Confidence: conf,
		MeanNDVI:   st.Mean,
		StdNDVI:    st.Std,
		MaxNDVI:    st.Max,
	}
}

// SummaryStats holds descriptive statistics of a value set.
type SummaryStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Std  float64 `json:"std"`
}

// Summarize computes mean, min, max, and population standard deviation. An
// empty input yields zeros.
func Summarize(values []float64) SummaryStats {
	if len(values) == 0 {
		return SummaryStats{}
	}
	data := stats.Float64Data(values)
	mean, _ := data.Mean()
	lo, _ := data.Min()
	hi, _ := data.Max()
	std, _ := data.StandardDeviationPopulation()
	return SummaryStats{Mean: mean, Min: lo, Max: hi, Std: std}
}

// Package synthetic produces deterministic seasonal vegetation data for demo
// mode, when no satellite catalog is configured.
package synthetic

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/domain"
)

const (
	// CadenceDays is the revisit interval between synthetic acquisitions.
	CadenceDays = 16

	noiseSigma      = 0.05
	pixelNoiseSigma = 0.03
	gridSize        = 3
	defaultSat      = "sentinel-2"
)

// Generator implements domain.SeriesFetcher with a seasonal NDVI model: a
// spring rise, a summer plateau, and a low baseline for the rest of the year.
// The same query always yields the same data.
type Generator struct{}

// New creates a Generator.
func New() *Generator { return &Generator{} }

// Series returns the synthetic NDVI series for q. Acquisitions fall every 16
// days from q.Start, strictly before q.End.
func (g *Generator) Series(q domain.SeriesQuery) (domain.VegetationSeries, error) {
	if !q.Start.Before(q.End) {
		return domain.VegetationSeries{}, domain.ErrNoData
	}
	rng := rngFor(q)

	var s domain.VegetationSeries
	for d := q.Start; d.Before(q.End); d = d.AddDate(0, 0, CadenceDays) {
		v := clip(SeasonalNDVI(d.Month())+rng.NormFloat64()*noiseSigma, -1, 1)
		s.Dates = append(s.Dates, d)
		s.Values = append(s.Values, v)
	}
	return s, nil
}

// Fetch returns one band scene per acquisition. Each scene is a small grid of
// red, NIR, blue and green reflectance whose NDVI centres on the seasonal value.
func (g *Generator) Fetch(ctx context.Context, q domain.SeriesQuery) (domain.SatellitePayload, error) {
	if err := ctx.Err(); err != nil {
		return domain.SatellitePayload{}, err
	}
	series, err := g.Series(q)
	if err != nil {
		return domain.SatellitePayload{}, err
	}

	sat := q.Satellite
	if sat == "" {
		sat = defaultSat
	}
	rng := rngFor(q)
	payload := domain.SatellitePayload{
		Satellite: sat,
		Note:      fmt.Sprintf("synthetic seasonal data (%d-day cadence)", CadenceDays),
		Demo:      true,
	}
	for i, d := range series.Dates {
		payload.Scenes = append(payload.Scenes, domain.Scene{
			Date:  d,
			Bands: sceneBands(series.Values[i], rng),
		})
	}
	return payload, nil
}

// SeasonalNDVI is the noise-free model value for a month.
func SeasonalNDVI(m time.Month) float64 {
	switch m {
	case time.March, time.April, time.May:
		return 0.6 + 0.2*math.Sin(float64(m-3)*math.Pi/3)
	case time.June, time.July, time.August:
		return 0.8
	default:
		return 0.35
	}
}

// sceneBands builds reflectance grids with the given mean NDVI. For a red
// reflectance r, NIR = r(1+n)/(1-n) gives an NDVI of exactly n.
func sceneBands(ndvi float64, rng *rand.Rand) domain.BandSet {
	red := make(domain.Band, gridSize)
	nir := make(domain.Band, gridSize)
	blue := make(domain.Band, gridSize)
	green := make(domain.Band, gridSize)
	for i := range gridSize {
		red[i] = make([]float64, gridSize)
		nir[i] = make([]float64, gridSize)
		blue[i] = make([]float64, gridSize)
		green[i] = make([]float64, gridSize)
		for j := range gridSize {
			n := clip(ndvi+rng.NormFloat64()*pixelNoiseSigma, -0.9, 0.9)
			r := 0.05 + 0.1*rng.Float64()
			red[i][j] = r
			nir[i][j] = r * (1 + n) / (1 - n)
			blue[i][j] = 0.6 * r
			green[i][j] = 1.2 * r
		}
	}
	return domain.BandSet{
		domain.BandRed:   red,
		domain.BandNIR:   nir,
		domain.BandBlue:  blue,
		domain.BandGreen: green,
	}
}

func rngFor(q domain.SeriesQuery) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprintf(h, "%.4f|%.4f|%s|%s", q.Location.Lat, q.Location.Lon,
		q.Start.Format(time.DateOnly), q.End.Format(time.DateOnly))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

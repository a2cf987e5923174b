// Package obscsv reads and writes vegetation observations as CSV, one row per
// site and acquisition date.
package obscsv

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/gocarina/gocsv"
)

// Row is one observation.
type Row struct {
	Site string  `csv:"site"`
	Lat  float64 `csv:"lat"`
	Lon  float64 `csv:"lon"`
	Date string  `csv:"date"` // YYYY-MM-DD
	NDVI float64 `csv:"ndvi"`
}

// Site is the observations of one site split into calendar years.
type Site struct {
	Name     string
	Location domain.Location
	Years    map[int]domain.VegetationSeries
}

// SortedYears returns the site's years in ascending order.
func (s Site) SortedYears() []int {
	years := make([]int, 0, len(s.Years))
	for y := range s.Years {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// SeasonYears returns the years whose season window may hold observations.
// A winter starts in December, so the year before the first one is included
// for its January and February.
func (s Site) SeasonYears(season domain.Season) []int {
	years := s.SortedYears()
	if season == domain.SeasonWinter && len(years) > 0 {
		years = append([]int{years[0] - 1}, years...)
	}
	return years
}

// Between returns the site's observations dated within [from, to] in date
// order. The window may span calendar years.
func (s Site) Between(from, to time.Time) domain.VegetationSeries {
	var out domain.VegetationSeries
	for _, y := range s.SortedYears() {
		if y < from.Year() || y > to.Year() {
			continue
		}
		series := s.Years[y]
		for i, d := range series.Dates {
			if d.Before(from) || d.After(to) {
				continue
			}
			out.Dates = append(out.Dates, d)
			out.Values = append(out.Values, series.Values[i])
		}
	}
	return out
}

// WriteFile writes rows to path with a header line.
func WriteFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads the rows of a CSV file.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read reads rows from r.
func Read(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse observations: %w", err)
	}
	return rows, nil
}

// Group splits rows by site, then by year, ordering each year's series by
// date. Sites keep the order of their first row; the first row of a site
// fixes its location.
func Group(rows []Row) ([]Site, error) {
	var sites []Site
	index := map[string]int{}
	for i, r := range rows {
		d, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: parse date %q: %w", i+1, r.Date, err)
		}
		pos, ok := index[r.Site]
		if !ok {
			pos = len(sites)
			index[r.Site] = pos
			sites = append(sites, Site{
				Name:     r.Site,
				Location: domain.Location{Lat: r.Lat, Lon: r.Lon},
				Years:    map[int]domain.VegetationSeries{},
			})
		}
		s := sites[pos].Years[d.Year()]
		s.Dates = append(s.Dates, d)
		s.Values = append(s.Values, r.NDVI)
		sites[pos].Years[d.Year()] = s
	}

	for _, site := range sites {
		for y, s := range site.Years {
			site.Years[y] = sortByDate(s)
		}
	}
	return sites, nil
}

// FromSeries flattens a dated series into rows for one site.
func FromSeries(site string, loc domain.Location, s domain.VegetationSeries) []Row {
	rows := make([]Row, 0, s.Len())
	for i, v := range s.Values {
		rows = append(rows, Row{
			Site: site,
			Lat:  loc.Lat,
			Lon:  loc.Lon,
			Date: s.Dates[i].Format(time.DateOnly),
			NDVI: v,
		})
	}
	return rows
}

func sortByDate(s domain.VegetationSeries) domain.VegetationSeries {
	idx := make([]int, len(s.Values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Dates[idx[a]].Before(s.Dates[idx[b]]) })

	out := domain.VegetationSeries{
		Dates:  make([]time.Time, len(idx)),
		Values: make([]float64, len(idx)),
	}
	for i, j := range idx {
		out.Dates[i] = s.Dates[j]
		out.Values[i] = s.Values[j]
	}
	return out
}

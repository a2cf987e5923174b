// Command genmock generates synthetic observation fixtures: a CSV of per-site
// NDVI acquisitions for cmd/analyze and a JSON array of vegetation-series
// messages for the Kafka source topic. It runs the detection the pipeline
// runs, so the printed stats match what the service would emit.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv-out data/mock/observations.csv \
//	  -kafka-out data/mock/generated_series_messages.json \
//	  -from 2019 -to 2024
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/adapter/obscsv"
	"github.com/couchcryptid/bloomwatch/internal/adapter/synthetic"
	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/jonboulle/clockwork"
)

type site struct {
	name string
	loc  domain.Location
}

var sites = []site{
	{"antelope-valley", domain.Location{Lat: 34.745, Lon: -118.376}},
	{"carrizo-plain", domain.Location{Lat: 35.193, Lon: -119.867}},
	{"death-valley", domain.Location{Lat: 36.505, Lon: -117.079}},
	{"washington-dc", domain.Location{Lat: 38.889, Lon: -77.050}},
	{"great-plains-kansas", domain.Location{Lat: 38.5, Lon: -96.8}},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvOut := flag.String("csv-out", "", "output path for the observation CSV")
	kafkaOut := flag.String("kafka-out", "", "output path for the Kafka series-message fixture")
	from := flag.Int("from", 2019, "first year to generate")
	to := flag.Int("to", 2024, "last year to generate")
	season := flag.String("season", "all", "season window per year (spring, summer, fall, winter, all)")
	flag.Parse()

	if *csvOut == "" || *kafkaOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv-out, -kafka-out")
	}
	if *to < *from {
		return fmt.Errorf("-to (%d) is before -from (%d)", *to, *from)
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(*to+1, time.January, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	gen := synthetic.New()
	window := domain.ParseSeason(*season)

	var rows []obscsv.Row //nolint:prealloc // size depends on the cadence
	var messages []domain.SeriesMessage
	for _, s := range sites {
		for year := *from; year <= *to; year++ {
			start, end := window.Window(year)
			series, err := gen.Series(domain.SeriesQuery{Location: s.loc, Start: start, End: end})
			if err != nil {
				return fmt.Errorf("%s %d: %w", s.name, year, err)
			}
			rows = append(rows, obscsv.FromSeries(s.name, s.loc, series)...)
			messages = append(messages, toMessage(fmt.Sprintf("%s-%d", s.name, year), s.loc, series))
		}
	}

	if err := os.MkdirAll(filepath.Dir(*csvOut), 0o755); err != nil {
		return err
	}
	if err := obscsv.WriteFile(*csvOut, rows); err != nil {
		return fmt.Errorf("writing CSV fixture: %w", err)
	}
	log.Printf("wrote %d observations: %s", len(rows), *csvOut)

	if err := writeJSON(*kafkaOut, messages); err != nil {
		return fmt.Errorf("writing Kafka fixture: %w", err)
	}
	log.Printf("wrote %d series messages: %s", len(messages), *kafkaOut)

	printStats(messages)
	return nil
}

func toMessage(id string, loc domain.Location, s domain.VegetationSeries) domain.SeriesMessage {
	dates := make([]string, len(s.Dates))
	for i, d := range s.Dates {
		dates[i] = d.Format(time.DateOnly)
	}
	return domain.SeriesMessage{
		ID:        id,
		Location:  loc,
		Satellite: "sentinel-2",
		Dates:     dates,
		Values:    s.Values,
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// printStats runs the pipeline's report builder over every message and
// prints the counts tests assert on.
func printStats(messages []domain.SeriesMessage) {
	detector := domain.NewDetector(domain.DefaultDetectorConfig())
	kinds := map[domain.EventKind]int{}
	withEvents := 0

	fmt.Println("\n=== Stats for updating test assertions ===")
	for _, msg := range messages {
		payload, err := msg.Payload()
		if err != nil {
			fmt.Printf("%s: %v\n", msg.ID, err)
			continue
		}
		report := domain.BuildReport(msg, payload, detector)
		if len(report.Events) > 0 {
			withEvents++
		}
		for _, ev := range report.Events {
			kinds[ev.Kind]++
		}
		peak := "-"
		if pb := report.Statistics.PeakBloom; pb != nil && pb.PeakDate != nil {
			peak = fmt.Sprintf("%s (%.3f)", pb.PeakDate.Format(time.DateOnly), pb.PeakValue)
		}
		fmt.Printf("  %-28s obs=%-3d events=%d peak=%s\n", msg.ID, report.Observations, len(report.Events), peak)
	}
	fmt.Printf("Total: %d messages, %d with events\n", len(messages), withEvents)
	fmt.Printf("By kind: peak_bloom=%d, sustained_bloom=%d, single_observation=%d\n",
		kinds[domain.KindPeakBloom], kinds[domain.KindSustainedBloom], kinds[domain.KindSingleObservation])
}

// Command analyze runs the bloom analyses offline. With -csv it reads an
// observation CSV (see cmd/genmock), detects blooms per site and year, fits
// year-over-year trends, and predicts each site's next peak bloom. With -scan
// it scans a predefined region against the synthetic data source.
//
// Usage:
//
//	go run ./cmd/analyze -csv data/mock/observations.csv -season spring -out analysis.json
//	go run ./cmd/analyze -scan carrizo_plain -start 2024-03-01 -end 2024-05-31
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/adapter/obscsv"
	"github.com/couchcryptid/bloomwatch/internal/adapter/synthetic"
	"github.com/couchcryptid/bloomwatch/internal/analysis"
	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/observability"
	"github.com/couchcryptid/bloomwatch/internal/scanner"
	"github.com/schollz/progressbar/v3"
)

// siteAnalysis is the JSON output for one site.
type siteAnalysis struct {
	Site       string                 `json:"site"`
	Location   domain.Location        `json:"location"`
	Season     domain.Season          `json:"season"`
	Years      []domain.YearlySummary `json:"yearly_data"`
	Trends     domain.TrendResult     `json:"trends"`
	Prediction domain.Prediction      `json:"prediction"`
}

func main() {
	csvPath := flag.String("csv", "", "observation CSV to analyze")
	season := flag.String("season", "spring", "season window per year (spring, summer, fall, winter, all)")
	vegType := flag.String("vegetation-type", "", "vegetation type for the prediction shift (e.g. wildflower)")
	current := flag.String("current-date", "", "reference date for predictions, YYYY-MM-DD (default today)")
	out := flag.String("out", "", "write JSON results here instead of stdout")

	region := flag.String("scan", "", "predefined region to scan ("+strings.Join(scanner.RegionKeys(), ", ")+")")
	start := flag.String("start", "", "scan start date, YYYY-MM-DD")
	end := flag.String("end", "", "scan end date, YYYY-MM-DD")
	flag.Parse()

	var code int
	switch {
	case *csvPath != "":
		code = runCSV(*csvPath, domain.ParseSeason(*season), *vegType, *current, *out)
	case *region != "":
		code = runScan(*region, *start, *end, *out)
	default:
		flag.Usage()
		code = 1
	}
	os.Exit(code)
}

func runCSV(path string, season domain.Season, vegType, currentDate, out string) int {
	current := domain.Now()
	if currentDate != "" {
		t, err := time.Parse(time.DateOnly, currentDate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: -current-date: %v\n", err)
			return 1
		}
		current = t
	}

	rows, err := obscsv.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	sites, err := obscsv.Group(rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	detector := domain.NewDetector(domain.DefaultDetectorConfig())
	predictor := domain.NewPredictor(domain.DefaultPredictorConfig())

	fmt.Fprintf(os.Stderr, "=== Bloom analysis: %d observations, %d sites, %s season ===\n\n", len(rows), len(sites), season)

	results := make([]siteAnalysis, 0, len(sites))
	for _, site := range sites {
		history := seasonHistory(site, season, detector)
		res := siteAnalysis{
			Site:       site.Name,
			Location:   site.Location,
			Season:     season,
			Years:      history,
			Trends:     domain.AnalyzeTrends(history),
			Prediction: predictor.PredictNextBloom(history, site.Location, vegType, current),
		}
		results = append(results, res)
		printSite(res)
	}

	if err := writeResults(out, results); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: write results: %v\n", err)
		return 1
	}
	return 0
}

// seasonHistory detects blooms in each season window of the site's record.
// Windows with no observations are skipped.
func seasonHistory(site obscsv.Site, season domain.Season, detector *domain.Detector) []domain.YearlySummary {
	var history []domain.YearlySummary
	for _, year := range site.SeasonYears(season) {
		series := site.Between(season.Window(year))
		if series.Len() == 0 {
			continue
		}
		det := detector.Detect(series.Values, nil, 0, series.Dates)
		history = append(history, domain.SummarizeYear(year, season, series, det.Events))
	}
	return history
}

func printSite(res siteAnalysis) {
	blooms := 0
	for _, y := range res.Years {
		blooms += y.BloomCount
	}
	fmt.Fprintf(os.Stderr, "  %-24s years=%-2d blooms=%-3d trend=%-18s", res.Site, len(res.Years), blooms, res.Trends.Status)

	if res.Prediction.Status != domain.PredictionSuccess || res.Prediction.PredictedDate == nil {
		fmt.Fprintf(os.Stderr, " \033[33m%s\033[0m\n", res.Prediction.Status)
		return
	}
	fmt.Fprintf(os.Stderr, " \033[32mnext peak %s (±%dd, %s confidence)\033[0m\n",
		res.Prediction.PredictedDate.Format(time.DateOnly),
		res.Prediction.UncertaintyDays,
		res.Prediction.ConfidenceLevel)
}

func runScan(region, startDate, endDate, out string) int {
	start, err := time.Parse(time.DateOnly, startDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: -start: %v\n", err)
		return 1
	}
	end, err := time.Parse(time.DateOnly, endDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: -end: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	svc := analysis.NewService(
		synthetic.New(),
		domain.NewDetector(domain.DefaultDetectorConfig()),
		domain.NewPredictor(domain.DefaultPredictorConfig()),
		metrics, logger,
	)
	scan := scanner.New(svc, scanner.Config{}, metrics, logger)

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "Scanning "+region)
		}
		bar.Set(done) //nolint:errcheck // progress output only
	}

	res, err := scan.ScanRegion(ctx, region, start, end, "", progress)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: scan: %v\n", err)
		return 1
	}
	if res.Status == scanner.StatusError {
		fmt.Fprintf(os.Stderr, "\033[31mFAIL\033[0m %s\n", res.Message)
		if len(res.AvailableRegions) > 0 {
			fmt.Fprintf(os.Stderr, "available regions: %s\n", strings.Join(res.AvailableRegions, ", "))
		}
		return 1
	}

	fmt.Fprintf(os.Stderr, "\n%s: %d/%d points analyzed, bloom detected: %t\n",
		res.RegionName, res.AnalyzedPoints, res.GridPoints, res.BloomDetected)
	if res.Coverage != nil {
		fmt.Fprintf(os.Stderr, "coverage: %.1f%% (%s)\n", res.Coverage.Percentage, res.Coverage.Description)
	}

	if err := writeResults(out, res); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: write results: %v\n", err)
		return 1
	}
	return 0
}

func writeResults(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

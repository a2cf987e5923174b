package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/observability"
	"github.com/sony/gobreaker/v2"
)

// Client implements domain.SeriesFetcher against a satellite catalog service
// that serves cloud-filtered vegetation series for a point and date window.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a catalog client. Requests trip a circuit breaker after
// more than five consecutive failures and probe again after 30s.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newBreaker("satellite-catalog"),
		metrics:    metrics,
		logger:     logger,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// Fetch retrieves the series for q. An empty window or a 404 yields
// domain.ErrNoData.
func (c *Client) Fetch(ctx context.Context, q domain.SeriesQuery) (domain.SatellitePayload, error) {
	params := url.Values{
		"lat":       {strconv.FormatFloat(q.Location.Lat, 'f', 6, 64)},
		"lon":       {strconv.FormatFloat(q.Location.Lon, 'f', 6, 64)},
		"start":     {q.Start.Format(time.DateOnly)},
		"end":       {q.End.Format(time.DateOnly)},
		"buffer_km": {strconv.FormatFloat(q.BufferKm, 'f', -1, 64)},
	}
	if q.Satellite != "" {
		params.Set("satellite", q.Satellite)
	}

	payload, err := c.doRequest(ctx, c.baseURL+"/series?"+params.Encode(), q.Location)
	c.metrics.CatalogRequests.WithLabelValues(outcome(err)).Inc()
	return payload, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string, loc domain.Location) (domain.SatellitePayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.SatellitePayload{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 {
			return r, fmt.Errorf("catalog returned %d", r.StatusCode)
		}
		return r, nil
	})
	c.metrics.CatalogAPIDuration.Observe(time.Since(start).Seconds())
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.SatellitePayload{}, fmt.Errorf("catalog circuit open: %w", err)
		}
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return domain.SatellitePayload{}, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
		}
		return domain.SatellitePayload{}, fmt.Errorf("catalog request: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return domain.SatellitePayload{}, domain.ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.SatellitePayload{}, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}

	var seriesResp response
	if err := json.NewDecoder(resp.Body).Decode(&seriesResp); err != nil {
		return domain.SatellitePayload{}, fmt.Errorf("decode response: %w", err)
	}
	if len(seriesResp.Values) == 0 && len(seriesResp.Scenes) == 0 {
		return domain.SatellitePayload{}, domain.ErrNoData
	}

	msg := domain.SeriesMessage{
		Location:  loc,
		Satellite: seriesResp.Satellite,
		Dates:     seriesResp.Dates,
		Values:    seriesResp.Values,
		EVI:       seriesResp.EVI,
		Scenes:    seriesResp.Scenes,
	}
	payload, err := msg.Payload()
	if err != nil {
		return domain.SatellitePayload{}, fmt.Errorf("catalog response: %w", err)
	}
	payload.Note = seriesResp.Note

	c.logger.Debug("catalog series fetched",
		"lat", loc.Lat, "lon", loc.Lon,
		"satellite", payload.Satellite,
		"observations", len(seriesResp.Values)+len(seriesResp.Scenes),
	)
	return payload, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrNoData):
		return "no_data"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	default:
		return "error"
	}
}

// Catalog API response types.

type response struct {
	Dates     []string              `json:"dates"` // YYYY-MM-DD
	Values    []float64             `json:"values"`
	EVI       []float64             `json:"evi,omitempty"`
	Scenes    []domain.SceneMessage `json:"scenes,omitempty"`
	Satellite string                `json:"satellite"`
	Note      string                `json:"note,omitempty"`
}

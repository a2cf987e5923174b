package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/analysis"
	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/scanner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
)

const maxRequestBodySize = 1 << 20

type apiHandler struct {
	svc      Analyzer
	scan     RegionScanner
	validate *validator.Validate
	logger   *slog.Logger
}

func (h *apiHandler) routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/bloom/detect", h.handleDetect)
	r.Post("/bloom/timeseries", h.handleTimeseries)
	r.Post("/bloom/predict", h.handlePredict)
	r.Post("/ndvi/calculate", h.handleCalculateIndices)
	r.Post("/regions/scan", h.handleScan)
	r.Get("/regions/suggest", h.handleSuggest)
}

// --- request bodies ---

type pointRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

func (p pointRequest) location() domain.Location {
	return domain.Location{Lat: *p.Lat, Lon: *p.Lon}
}

type detectRequest struct {
	pointRequest
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	BufferKm  float64 `json:"buffer_km" validate:"omitempty,gt=0,lte=100"`
	Satellite string  `json:"satellite" validate:"omitempty,max=32"`
	Threshold float64 `json:"threshold" validate:"omitempty,gt=0,lt=1"`
}

type timeseriesRequest struct {
	pointRequest
	Years     []int  `json:"years" validate:"omitempty,max=30,unique,dive,gte=1972,lte=2100"`
	Season    string `json:"season" validate:"omitempty,max=16"`
	Satellite string `json:"satellite" validate:"omitempty,max=32"`
}

type predictRequest struct {
	timeseriesRequest
	VegetationType string `json:"vegetation_type" validate:"omitempty,max=64"`
	CurrentDate    string `json:"current_date" validate:"omitempty,datetime=2006-01-02"`
}

type indicesRequest struct {
	pointRequest
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type scanRequest struct {
	Region         string    `json:"region" validate:"required_without=BBox,omitempty,max=64"`
	BBox           []float64 `json:"bbox" validate:"required_without=Region,omitempty,len=4"`
	StartDate      string    `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string    `json:"end_date" validate:"required,datetime=2006-01-02"`
	GridResolution float64   `json:"grid_resolution" validate:"omitempty,gt=0,lte=5"`
	Satellite      string    `json:"satellite" validate:"omitempty,max=32"`
}

// --- handlers ---

func (h *apiHandler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "bloomwatch",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"POST /api/bloom/detect":     "Detect bloom events at a location over a date range",
			"POST /api/bloom/timeseries": "Summarize one season per year and fit trends",
			"POST /api/bloom/predict":    "Predict the next peak bloom from historical seasons",
			"POST /api/ndvi/calculate":   "Calculate vegetation indices for a location and date",
			"POST /api/regions/scan":     "Scan a bounding box or predefined region for bloom hotspots",
			"GET /api/regions/suggest":   "List well-known bloom regions",
		},
	})
}

func (h *apiHandler) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, end, ok := dateRange(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	report, err := h.svc.Detect(r.Context(), analysis.DetectRequest{
		Location:  req.location(),
		Start:     start,
		End:       end,
		BufferKm:  req.BufferKm,
		Satellite: req.Satellite,
		Threshold: req.Threshold,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type timeseriesResponse struct {
	Status string `json:"status"`
	analysis.TimeseriesReport
}

func (h *apiHandler) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	var req timeseriesRequest
	if !h.decode(w, r, &req) {
		return
	}

	report, err := h.svc.Timeseries(r.Context(), analysis.TimeseriesRequest{
		Location:  req.location(),
		Years:     req.Years,
		Season:    domain.Season(req.Season),
		Satellite: req.Satellite,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timeseriesResponse{Status: "success", TimeseriesReport: report})
}

type predictResponse struct {
	Status string `json:"status"`
	analysis.PredictReport
}

func (h *apiHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !h.decode(w, r, &req) {
		return
	}
	var current time.Time
	if req.CurrentDate != "" {
		current, _ = time.Parse(time.DateOnly, req.CurrentDate)
	}

	report, err := h.svc.Predict(r.Context(), analysis.PredictRequest{
		Location:       req.location(),
		Years:          req.Years,
		Season:         domain.Season(req.Season),
		VegetationType: req.VegetationType,
		CurrentDate:    current,
		Satellite:      req.Satellite,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Status: "success", PredictReport: report})
}

type indicesResponse struct {
	Status string `json:"status"`
	analysis.IndicesReport
}

func (h *apiHandler) handleCalculateIndices(w http.ResponseWriter, r *http.Request) {
	var req indicesRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)

	report, err := h.svc.CalculateIndices(r.Context(), req.location(), date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indicesResponse{Status: "success", IndicesReport: report})
}

func (h *apiHandler) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, end, ok := dateRange(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	var (
		res scanner.Result
		err error
	)
	if req.Region != "" {
		res, err = h.scan.ScanRegion(r.Context(), req.Region, start, end, req.Satellite, nil)
	} else {
		b := orb.Bound{Min: orb.Point{req.BBox[0], req.BBox[1]}, Max: orb.Point{req.BBox[2], req.BBox[3]}}
		if b.Min.Lon() >= b.Max.Lon() || b.Min.Lat() >= b.Max.Lat() {
			writeError(w, http.StatusBadRequest, "bbox must be [min_lon, min_lat, max_lon, max_lat]")
			return
		}
		res, err = h.scan.Scan(r.Context(), scanner.Request{
			BBox:       b,
			Start:      start,
			End:        end,
			Resolution: req.GridResolution,
			Satellite:  req.Satellite,
		})
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if res.Status == scanner.StatusError {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) handleSuggest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"regions": suggestedRegions,
		"count":   len(suggestedRegions),
	})
}

// --- helpers ---

// decode reads a single JSON object into dst and validates it. On failure it
// writes a 400 response and returns false.
func (h *apiHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (h *apiHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNoData) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "no_data",
			"error":  "No satellite data available for this location and time period",
		})
		return
	}
	h.logger.Error("request failed",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// dateRange parses two validated dates and checks their order.
func dateRange(w http.ResponseWriter, from, to string) (time.Time, time.Time, bool) {
	start, _ := time.Parse(time.DateOnly, from)
	end, _ := time.Parse(time.DateOnly, to)
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "start_date must be before end_date")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage flattens validator errors into one line.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("invalid %s: failed %q constraint", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

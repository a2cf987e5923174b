package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/observability"
)

// BloomTransformer implements Transformer by parsing a series message and
// running event detection over it.
type BloomTransformer struct {
	detector *domain.Detector
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a BloomTransformer. A nil metrics disables counting.
func NewTransformer(detector *domain.Detector, logger *slog.Logger, metrics *observability.Metrics) *BloomTransformer {
	return &BloomTransformer{
		detector: detector,
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *BloomTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.BloomReport, error) {
	msg, payload, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.BloomReport{}, err
	}

	report := domain.BuildReport(msg, payload, t.detector)
	if report.Status == domain.DetectionError {
		t.logger.Warn("bloom detection failed", "id", report.ID, "error", report.Message)
	}
	if t.metrics != nil {
		for i := range report.Events {
			t.metrics.BloomEventsDetected.WithLabelValues(string(report.Events[i].Kind)).Inc()
		}
	}
	t.logger.Debug("series analyzed",
		"id", report.ID,
		"observations", report.Observations,
		"events", len(report.Events),
	)
	return report, nil
}

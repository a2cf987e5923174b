package domain

import (
	"fmt"
	"time"
)

// ensemble weights each sub-method's date offset from the reference date and
// its confidence. Uncertainty is the spread of the sub-method dates plus a
// week.
func (p *Predictor) ensemble(methods []MethodPrediction, years int) Prediction {
	weights := p.cfg.Weights
	if years >= p.cfg.RichHistoryYears {
		weights = p.cfg.RichWeights
	}
	ref := p.cfg.ReferenceDate

	var offset, confidence float64
	var dated []time.Time
	for i := range methods {
		m := &methods[i]
		m.Weight = weights.of(m.Method)
		if m.Date.IsZero() {
			continue
		}
		offset += daysBetween(ref, m.Date) * m.Weight
		confidence += m.Confidence * m.Weight
		dated = append(dated, m.Date)
	}

	final := ref.AddDate(0, 0, int(offset))
	uncertainty := 14
	if len(dated) > 1 {
		earliest := dated[0]
		for _, d := range dated[1:] {
			if d.Before(earliest) {
				earliest = d
			}
		}
		diffs := make([]float64, len(dated))
		for i, d := range dated {
			diffs[i] = daysBetween(earliest, d)
		}
		uncertainty = int(popStd(diffs)) + 7
	}

	dr := rangeAround(final, uncertainty)
	return Prediction{
		Status:          PredictionSuccess,
		PredictedDate:   &final,
		Confidence:      confidence,
		ConfidenceLevel: ConfidenceLevel(confidence),
		UncertaintyDays: uncertainty,
		DateRange:       &dr,
		Methods:         methods,
		Recommendations: Recommendations(final, confidence, uncertainty),
	}
}

func daysBetween(from, to time.Time) float64 {
	return float64(int(to.Sub(from).Hours() / 24))
}

// ConfidenceLevel maps a confidence score onto a five-step label.
func ConfidenceLevel(score float64) string {
	switch {
	case score >= 0.80:
		return "Very High"
	case score >= 0.65:
		return "High"
	case score >= 0.50:
		return "Moderate"
	case score >= 0.35:
		return "Low"
	default:
		return "Very Low"
	}
}

// Recommendations builds the monitoring advice for a predicted date.
func Recommendations(predicted time.Time, confidence float64, uncertainty int) []string {
	lead := uncertainty + 14
	recs := []string{
		fmt.Sprintf("Begin monitoring from %s (%d days before predicted bloom)",
			predicted.AddDate(0, 0, -lead).Format(time.DateOnly), lead),
	}

	switch {
	case confidence >= 0.75:
		recs = append(recs,
			"High confidence prediction - suitable for planning activities",
			"Consider advance logistics preparation")
	case confidence >= 0.55:
		recs = append(recs,
			"Moderate confidence - maintain flexible planning",
			"Monitor weather conditions closely")
	default:
		recs = append(recs,
			"Low confidence - use as rough estimate only",
			"Require real-time monitoring for confirmation")
	}

	switch {
	case uncertainty > 21:
		recs = append(recs, fmt.Sprintf("High uncertainty (±%d days) - check weekly", uncertainty))
	case uncertainty > 14:
		recs = append(recs, fmt.Sprintf("Moderate uncertainty (±%d days) - check bi-weekly", uncertainty))
	default:
		recs = append(recs, fmt.Sprintf("Low uncertainty (±%d days) - reliable timeframe", uncertainty))
	}

	return append(recs,
		"Validate prediction with ground observations",
		"Update prediction as season approaches")
}

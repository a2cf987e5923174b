// Package domain models vegetation-index time series and the bloom events,
// trends, and predictions derived from them.
//
// # Data Source
//
// Series originate from a scene catalog (or the synthetic seasonal source in
// demo mode). A catalog either returns a pre-derived NDVI series as parallel
// date/value lists, or dated scenes carrying raw band reflectance grids from
// which the index series is computed here. The Kafka source topic carries the
// same shape as a flat JSON document, see [SeriesMessage].
//
// # Index Conventions
//
// All indices are normalized differences of surface reflectance:
//
//	NDVI  = (NIR - Red) / (NIR + Red)
//	EVI   = 2.5 * (NIR - Red) / (NIR + 6*Red - 7.5*Blue + 1)
//	SAVI  = (NIR - Red) * (1 + L) / (NIR + Red + L)     L defaults to 0.5
//	GNDVI = (NIR - Green) / (NIR + Green)
//
// Division by zero and any resulting NaN or ±Inf read as 0 ("no vegetation
// signal"), then values are clipped to [-1, 1]. Every index goes through the
// same helper, see [ratio].
//
// When only a pre-derived NDVI series is available, EVI is approximated as
// NDVI × 1.15. This is a modeling shortcut, not a physical derivation.
//
// Vegetation cover bins (NDVI):
//
//	water <0 | bare_soil [0,0.2) | sparse [0.2,0.4) | moderate [0.4,0.6) | dense ≥0.6
//
// # Bloom Detection
//
// Bloom events are found with a peak-finding pass (height ≥ threshold, peaks at
// least 2 observations apart, prominence ≥ 0.1). Each peak is widened into an
// episode by scanning backward while the ascent is steeper than 0.05 per
// observation and forward through a decline steeper than 0.05 per observation.
// These constants live in [DetectorConfig] and are not re-derived.
//
// Confidence is a fixed step function of the peak value:
//
//	<threshold 0 | <0.5 0.5 | <0.6 0.7 | <0.7 0.85 | ≥0.7 0.95
//
// Intensity is classified from the mean of the episode's values:
//
//	<0.4 low | <0.6 moderate | <0.75 high | ≥0.75 very_high
//
// # Result Contract
//
// Detection, trend analysis, and prediction never return Go errors or panic
// past their boundary. Each returns a record with an explicit status field so
// callers can branch on insufficient data or faults without inspecting error
// types.
//
// # ID Generation
//
// Report IDs are deterministic SHA-256 hashes of location, satellite, and the
// series date range, so replaying a source message yields the same ID. See
// [generateID].
package domain

// Package domain holds the canonical in-memory types shared across the ingestion
// pipeline, storage tiers, query layer, and streaming detectors.
package domain

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// sensorNamespace is the fixed namespace used to derive deterministic sensor IDs
// from "<source>:<upstream_id>" via v5 (SHA-1) hashing, so re-ingesting the same
// upstream record always yields the same sensor_id.
var sensorNamespace = uuid.MustParse("6e6f8f1e-9b0a-4e41-9f0b-3c2f8e9a7d10")

// QualityFlag classifies how much trust a reading's dose_rate value deserves.
type QualityFlag string

const (
	QualityValid   QualityFlag = "valid"
	QualitySuspect QualityFlag = "suspect"
	QualityInvalid QualityFlag = "invalid"
)

// Unit conversion factors that must be preserved exactly.
const (
	CPMToMicrosieverts           = 0.0057
	MicroroentgenToMicrosieverts = 0.00877
)

// NormalizedReading is the lingua franca record produced by every source adapter
// and consumed by the pipeline, storage tiers, and detectors.
type NormalizedReading struct {
	SensorID              uuid.UUID
	Timestamp             int64 // seconds since epoch, UTC
	Bucket                int64 // Timestamp / 3600
	Latitude, Longitude   float64
	DoseRateMicrosieverts float64
	Uncertainty           float64
	QualityFlag           QualityFlag
	Source                string
	CellID                string
}

// KnownSources is the registry of source tags a NormalizedReading.Source must
// belong to for the reading to pass the invariant check.
var KnownSources = map[string]bool{
	"safecast":     true,
	"uradmonitor":  true,
	"epa_radnet":   true,
	"eurdep":       true,
	"iaea_pris":    true,
	"usgs_seismic": true,
	"nasa_firms":   true,
	"noaa_gfs":     true,
	"open_meteo":   true,
	"openaq":       true,
}

// SensorID derives the stable 128-bit sensor identifier from a source and an
// upstream-assigned ID, via namespaced v5 hashing of "<source>:<upstream_id>".
func SensorID(source, upstreamID string) uuid.UUID {
	return uuid.NewSHA1(sensorNamespace, []byte(fmt.Sprintf("%s:%s", source, upstreamID)))
}

// CellID computes the coarse geo-cell for a coordinate pair at 0.01 degree
// resolution, formatted "lat2f,lon2f".
func CellID(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// NewReading constructs a NormalizedReading, deriving Bucket and CellID and
// leaving the invariant checking to Validate.
func NewReading(sensorID uuid.UUID, ts int64, lat, lon, doseRate, uncertainty float64, quality QualityFlag, source string) NormalizedReading {
	return NormalizedReading{
		SensorID:              sensorID,
		Timestamp:             ts,
		Bucket:                ts / 3600,
		Latitude:              lat,
		Longitude:             lon,
		DoseRateMicrosieverts: doseRate,
		Uncertainty:           uncertainty,
		QualityFlag:           quality,
		Source:                source,
		CellID:                CellID(lat, lon),
	}
}

// Validate enforces the invariants from the specification: bucket consistency,
// coordinate bounds, non-negative dose rate, and a known source tag. A reading
// failing any of these must be rejected at the pipeline boundary.
func (r NormalizedReading) Validate() error {
	if r.Bucket != r.Timestamp/3600 {
		return fmt.Errorf("bucket %d does not match timestamp %d/3600", r.Bucket, r.Timestamp)
	}
	if math.Abs(r.Latitude) > 90 {
		return fmt.Errorf("latitude %f out of range", r.Latitude)
	}
	if math.Abs(r.Longitude) > 180 {
		return fmt.Errorf("longitude %f out of range", r.Longitude)
	}
	if r.DoseRateMicrosieverts < 0 {
		return fmt.Errorf("dose_rate_microsieverts %f is negative", r.DoseRateMicrosieverts)
	}
	if r.Source == "" {
		return fmt.Errorf("source is empty")
	}
	if !KnownSources[r.Source] {
		return fmt.Errorf("source %q is not in the known source registry", r.Source)
	}
	return nil
}

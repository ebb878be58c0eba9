package domain

import "github.com/google/uuid"

// Severity classifies how far an anomalous reading departed from baseline.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Anomaly is derived from the detector's online statistics; it is not
// authoritative beyond the AnomalyDetected event it rides in on.
type Anomaly struct {
	AnomalyID  uuid.UUID
	SensorID   uuid.UUID
	DetectedAt int64
	DoseRate   float64
	Baseline   float64
	ZScore     float64
	Severity   Severity
	Algorithm  string
}

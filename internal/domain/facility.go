package domain

import "time"

// FacilityStatus is the operational status of a NuclearFacility, as reported
// upstream or inferred by the correlation engine.
type FacilityStatus string

const (
	FacilityOperational FacilityStatus = "operational"
	FacilityMaintenance FacilityStatus = "maintenance"
	FacilityEmergency   FacilityStatus = "emergency"
	FacilityOffline     FacilityStatus = "offline"
)

// NuclearFacility is mostly-immutable reference data used by the correlation
// engine to infer facility status and to attribute nearby radiation spikes.
type NuclearFacility struct {
	ID                string
	Name              string
	Latitude          float64
	Longitude         float64
	Type              string
	ReactorType       string
	CapacityMW        float64
	OperationalStatus FacilityStatus
	RadiationBaseline float64 // microsieverts/h
	SeismicZone       bool
	LastInspection    time.Time
	AnomalyHistory    []FacilityAnomalyRecord
}

// FacilityAnomalyRecord is one entry in a facility's anomaly history, used by
// infer_facility_status to count "recent anomalies."
type FacilityAnomalyRecord struct {
	Timestamp int64
	Severity  Severity
	Note      string
}
